package term

import (
	"strconv"
	"strings"
)

// KAST text rendering; Parse reads it back

func (v Variable) String() string {
	return v.name + ":" + v.sort.String()
}

func (t *Token) String() string {
	switch t.sort.name {
	case SortInt, SortBool:
		return t.value
	case SortString:
		return strconv.Quote(t.value)
	}
	return "#token(" + strconv.Quote(t.value) + "," + strconv.Quote(t.sort.String()) + ")"
}

func (t *KApply) String() string         { return render(t) }
func (h *Hole) String() string           { return "HOLE" }
func (s *KSequence) String() string      { return render(s) }
func (c *Cell) String() string           { return render(c) }
func (c *CellCollection) String() string { return render(c) }
func (m *BuiltinMap) String() string     { return render(m) }
func (s *BuiltinSet) String() string     { return render(s) }
func (l *BuiltinList) String() string    { return render(l) }

func render(t Term) string {
	sb := &strings.Builder{}
	write(sb, t)
	return sb.String()
}

func write(sb *strings.Builder, t Term) {
	switch t := t.(type) {
	case *KApply:
		if t.label.ite && len(t.args) == 3 {
			sb.WriteString("#if ")
			write(sb, t.args[0])
			sb.WriteString(" #then ")
			write(sb, t.args[1])
			sb.WriteString(" #else ")
			write(sb, t.args[2])
			sb.WriteString(" #fi")
			return
		}
		sb.WriteString(t.label.String())
		sb.WriteString("(")
		writeList(sb, t.args, ", ")
		sb.WriteString(")")
	case *KSequence:
		if t.IsEmpty() {
			sb.WriteString(".K")
			return
		}
		writeList(sb, t.items, " ~> ")
		if t.frame != nil {
			sb.WriteString(" ~> ")
			write(sb, t.frame)
		}
	case *Cell:
		sb.WriteString("<" + string(t.label) + "> ")
		write(sb, t.content)
		sb.WriteString(" </" + string(t.label) + ">")
	case *CellCollection:
		if len(t.cells) == 0 && len(t.frames) == 0 {
			sb.WriteString(".Bag")
			return
		}
		for i, c := range t.cells {
			if i > 0 {
				sb.WriteString(" ")
			}
			write(sb, c)
		}
		for i, f := range t.frames {
			if i > 0 || len(t.cells) > 0 {
				sb.WriteString(" ")
			}
			write(sb, f)
		}
	case *BuiltinMap:
		if len(t.entries) == 0 && t.frame == nil {
			sb.WriteString(".Map")
			return
		}
		sb.WriteString("Map{")
		for i, e := range t.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			write(sb, e.Key)
			sb.WriteString(" |-> ")
			write(sb, e.Value)
		}
		writeFrame(sb, t.frame)
		sb.WriteString("}")
	case *BuiltinSet:
		if len(t.elements) == 0 && t.frame == nil {
			sb.WriteString(".Set")
			return
		}
		sb.WriteString("Set{")
		writeList(sb, t.elements, ", ")
		writeFrame(sb, t.frame)
		sb.WriteString("}")
	case *BuiltinList:
		if len(t.elements) == 0 && t.frame == nil {
			sb.WriteString(".List")
			return
		}
		sb.WriteString("List[")
		writeList(sb, t.elements, ", ")
		writeFrame(sb, t.frame)
		sb.WriteString("]")
	default:
		sb.WriteString(t.String())
	}
}

func writeList(sb *strings.Builder, ts []Term, sep string) {
	for i, t := range ts {
		if i > 0 {
			sb.WriteString(sep)
		}
		// a sequence nested in a list needs parentheses to keep its extent
		if _, ok := t.(*KSequence); ok && sep != " ~> " && !t.(*KSequence).IsEmpty() {
			sb.WriteString("(")
			write(sb, t)
			sb.WriteString(")")
			continue
		}
		write(sb, t)
	}
}

func writeFrame(sb *strings.Builder, frame Term) {
	if frame == nil {
		return
	}
	sb.WriteString(" | ")
	write(sb, frame)
}

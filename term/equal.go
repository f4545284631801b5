package term

import "slices"

// Equal is structural equality. Sorts and labels compare by identity.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Hash() != b.Hash() {
		return false
	}
	switch a := a.(type) {
	case Variable:
		b, ok := b.(Variable)
		return ok && a == b
	case *Token:
		b, ok := b.(*Token)
		return ok && a.sort == b.sort && a.value == b.value
	case *Hole:
		_, ok := b.(*Hole)
		return ok
	case *KApply:
		b, ok := b.(*KApply)
		return ok && a.label == b.label && slices.EqualFunc(a.args, b.args, Equal)
	case *KSequence:
		b, ok := b.(*KSequence)
		return ok && slices.EqualFunc(a.items, b.items, Equal) && Equal(a.frame, b.frame)
	case *Cell:
		b, ok := b.(*Cell)
		return ok && a.label == b.label && Equal(a.content, b.content)
	case *CellCollection:
		b, ok := b.(*CellCollection)
		return ok && slices.Equal(a.frames, b.frames) && slices.EqualFunc(a.cells, b.cells, func(x, y *Cell) bool { return Equal(x, y) })
	case *BuiltinMap:
		b, ok := b.(*BuiltinMap)
		return ok && Equal(a.frame, b.frame) && slices.EqualFunc(a.entries, b.entries, func(x, y MapEntry) bool {
			return Equal(x.Key, y.Key) && Equal(x.Value, y.Value)
		})
	case *BuiltinSet:
		b, ok := b.(*BuiltinSet)
		return ok && Equal(a.frame, b.frame) && slices.EqualFunc(a.elements, b.elements, Equal)
	case *BuiltinList:
		b, ok := b.(*BuiltinList)
		return ok && Equal(a.frame, b.frame) && slices.EqualFunc(a.elements, b.elements, Equal)
	}
	return false
}

package definition

import (
	"github.com/cottand/ksym/kerr"
	"github.com/cottand/ksym/term"
	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"
)

// Snapshot is the serializable form of a Definition. Sorts and labels are
// stored by name and ordinal so Restore can re-canonicalize them against a
// live registry; terms are stored as KAST text.
type Snapshot struct {
	Sorts           []SortSnapshot
	Subsorts        []SubsortSnapshot
	Labels          []LabelSnapshot
	Cells           []CellSnapshot
	ComputationCell string
	Rules           []RuleSnapshot
}

type SortSnapshot struct {
	Name    string
	Ordinal int
}

type SubsortSnapshot struct {
	Big, Small string
}

type LabelSnapshot struct {
	Name     string
	Ordinal  int
	Function bool
	Hook     string

	// each production is its argument sorts followed by its result sort
	Productions [][]string
}

type CellSnapshot struct {
	Label        string
	Sort         string
	Multiplicity uint8
	Stream       uint8
	Indexed      bool
	Parent       string
}

type RuleSnapshot struct {
	Label    string
	LHS      string
	RHS      string
	Requires string
	Ensures  string
	Lookups  []LookupSnapshot
	Heat     bool
	Cool     bool
	Owise    bool
	Stream   uint8
	Extra    map[string]string
}

type LookupSnapshot struct {
	Kind             uint8
	Base, Key, Value string
}

func (d *Definition) Snapshot() *Snapshot {
	reg := d.Registry
	s := &Snapshot{ComputationCell: string(d.ComputationCell)}
	for _, sort := range reg.AllSorts() {
		s.Sorts = append(s.Sorts, SortSnapshot{Name: sort.String(), Ordinal: sort.Ordinal()})
		for _, sub := range reg.Subsorts(sort) {
			s.Subsorts = append(s.Subsorts, SubsortSnapshot{Big: sort.String(), Small: sub.String()})
		}
	}
	for _, l := range reg.AllLabels() {
		ls := LabelSnapshot{Name: l.Name(), Ordinal: l.Ordinal(), Function: l.IsFunction(), Hook: l.Hook()}
		for _, p := range l.Productions() {
			var sorts []string
			for _, a := range p.Args {
				sorts = append(sorts, a.String())
			}
			ls.Productions = append(ls.Productions, append(sorts, p.Result.String()))
		}
		s.Labels = append(s.Labels, ls)
	}
	for _, c := range d.Cells() {
		s.Cells = append(s.Cells, CellSnapshot{
			Label:        string(c.Label),
			Sort:         c.Sort.String(),
			Multiplicity: uint8(c.Multiplicity),
			Stream:       uint8(c.Stream),
			Indexed:      c.Indexed,
			Parent:       string(c.Parent),
		})
	}
	text := func(t term.Term) string {
		if t == nil {
			return ""
		}
		return t.String()
	}
	for _, r := range d.rules {
		rs := RuleSnapshot{
			Label:    r.Label,
			LHS:      text(r.LHS),
			RHS:      text(r.RHS),
			Requires: text(r.Requires),
			Ensures:  text(r.Ensures),
			Heat:     r.Attributes.Heat,
			Cool:     r.Attributes.Cool,
			Owise:    r.Attributes.Owise,
			Stream:   uint8(r.Attributes.Stream),
			Extra:    r.Attributes.Extra,
		}
		for _, l := range r.Lookups {
			rs.Lookups = append(rs.Lookups, LookupSnapshot{Kind: uint8(l.Kind), Base: text(l.Base), Key: text(l.Key), Value: text(l.Value)})
		}
		s.Rules = append(s.Rules, rs)
	}
	return s
}

// Fingerprint identifies the content of a snapshot, for use as a cache key
func (s *Snapshot) Fingerprint() (uint64, error) {
	h, err := hashstructure.Hash(s, nil)
	if err != nil {
		return 0, errors.Wrap(err, "could not hash definition snapshot")
	}
	return h, nil
}

// Restore rebuilds a definition from s against reg, which must be fresh or
// already agree with s. Every sort and label is resolved by name and must
// have the ordinal recorded in s.
func Restore(s *Snapshot, reg *term.Registry) (*Definition, error) {
	for _, sort := range s.Sorts {
		if _, err := reg.ResolveSort(sort.Name, sort.Ordinal); err != nil {
			return nil, err
		}
	}
	for _, sub := range s.Subsorts {
		reg.AddSubsort(reg.Sort(sub.Big), reg.Sort(sub.Small))
	}
	for _, ls := range s.Labels {
		l, err := reg.ResolveLabel(ls.Name, ls.Ordinal)
		if err != nil {
			return nil, err
		}
		spec := term.LabelSpec{Function: ls.Function, Hook: ls.Hook}
		for _, p := range ls.Productions {
			if len(p) == 0 {
				return nil, kerr.New(&kerr.DefinitionLoadError{Where: "label " + ls.Name, Message: "empty production"})
			}
			prod := term.Production{Result: reg.Sort(p[len(p)-1])}
			for _, a := range p[:len(p)-1] {
				prod.Args = append(prod.Args, reg.Sort(a))
			}
			spec.Productions = append(spec.Productions, prod)
		}
		reg.DeclareLabel(l.Name(), spec)
	}

	d := New(reg)
	d.ComputationCell = term.CellLabel(s.ComputationCell)
	for _, c := range s.Cells {
		err := d.DeclareCell(CellInfo{
			Label:        term.CellLabel(c.Label),
			Sort:         reg.Sort(c.Sort),
			Multiplicity: term.Multiplicity(c.Multiplicity),
			Stream:       Stream(c.Stream),
			Indexed:      c.Indexed,
			Parent:       term.CellLabel(c.Parent),
		})
		if err != nil {
			return nil, err
		}
	}
	for _, rs := range s.Rules {
		session := d.Session()
		parse := func(text string) (term.Term, error) {
			if text == "" {
				return nil, nil
			}
			t, err := session.Parse(text)
			return t, errors.Wrapf(err, "rule %s", rs.Label)
		}
		r := &Rule{Label: rs.Label, Attributes: Attributes{
			Heat: rs.Heat, Cool: rs.Cool, Owise: rs.Owise, Stream: Stream(rs.Stream), Extra: rs.Extra,
		}}
		var err error
		if r.LHS, err = parse(rs.LHS); err != nil {
			return nil, err
		}
		if r.RHS, err = parse(rs.RHS); err != nil {
			return nil, err
		}
		if r.Requires, err = parse(rs.Requires); err != nil {
			return nil, err
		}
		if r.Ensures, err = parse(rs.Ensures); err != nil {
			return nil, err
		}
		for _, ls := range rs.Lookups {
			l := Lookup{Kind: LookupKind(ls.Kind)}
			if l.Base, err = parse(ls.Base); err != nil {
				return nil, err
			}
			if l.Key, err = parse(ls.Key); err != nil {
				return nil, err
			}
			if l.Value, err = parse(ls.Value); err != nil {
				return nil, err
			}
			r.Lookups = append(r.Lookups, l)
		}
		d.AddRule(r)
	}
	return d, nil
}

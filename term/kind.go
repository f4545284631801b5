package term

// Kind is the coarse structural category of a term
type Kind uint8

const (
	KindKItem Kind = iota
	KindK
	KindKList
	KindKLabel
	KindCell
	KindCellCollection
)

func (k Kind) String() string {
	switch k {
	case KindKItem:
		return "KItem"
	case KindK:
		return "K"
	case KindKList:
		return "KList"
	case KindKLabel:
		return "KLabel"
	case KindCell:
		return "Cell"
	case KindCellCollection:
		return "CellCollection"
	default:
		return "Unknown"
	}
}

// CompatibleWith reports whether terms of kinds k and other may be equated.
// A K item is a singleton K sequence, and a cell is a singleton cell collection.
func (k Kind) CompatibleWith(other Kind) bool {
	if k == other {
		return true
	}
	switch {
	case k == KindKItem && other == KindK, k == KindK && other == KindKItem:
		return true
	case k == KindCell && other == KindCellCollection, k == KindCellCollection && other == KindCell:
		return true
	}
	return false
}

// KindOfSort is the kind of a variable or function call of sort s
func KindOfSort(s *Sort) Kind {
	switch s.name {
	case SortK:
		return KindK
	case SortKList:
		return KindKList
	case SortKLabel:
		return KindKLabel
	case SortBag:
		return KindCellCollection
	case SortCell:
		return KindCell
	default:
		return KindKItem
	}
}

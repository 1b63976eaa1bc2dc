package mold

// Summary totals a group of molds.
type Summary struct {
	Count                   int
	TotalArea               float64
	TotalAreaWithMultiplier float64
}

func (s *Summary) add(m Mold) {
	s.Count++
	s.TotalArea += m.AreaCm2
	s.TotalAreaWithMultiplier += m.TotalArea()
}

// Result is a snapshot of per-type and overall totals.
type Result struct {
	ByType map[Type]Summary
	Total  Summary
}

// Present lists the types that have at least one mold, in display order.
func (r Result) Present() []Type {
	var out []Type
	for _, t := range Types {
		if _, ok := r.ByType[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Aggregate totals molds per type and overall. It fails with ErrNoMolds on
// an empty list.
func Aggregate(molds []Mold) (Result, error) {
	if len(molds) == 0 {
		return Result{}, ErrNoMolds
	}
	r := Result{ByType: make(map[Type]Summary)}
	for _, m := range molds {
		s := r.ByType[m.Type]
		s.add(m)
		r.ByType[m.Type] = s
		r.Total.add(m)
	}
	return r, nil
}

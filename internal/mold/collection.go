package mold

import (
	"fmt"

	"mold-measure/internal/measure"
	"mold-measure/pkg/geometry"
)

// Collection is an ordered set of molds with an optional selection. Edits
// return a new collection and leave the receiver untouched, so a snapshot
// handed to a reader never changes underneath it.
type Collection struct {
	molds    []Mold
	nextID   int
	selected int
}

// NewCollection returns an empty collection whose first id is 1.
func NewCollection() *Collection {
	return &Collection{nextID: 1}
}

// Create builds a mold with the next session id, type Cut and multiplier 1.
// AreaCm2 is the estimated area at factor and never changes afterwards.
// The id is consumed here even if the mold is never added; pass the
// detection pass's molds to Replace.
func (c *Collection) Create(contour []geometry.Point2D, pixelArea, factor float64) Mold {
	id := c.nextID
	c.nextID++
	pts := make([]geometry.Point2D, len(contour))
	copy(pts, contour)
	d := measure.Estimate(pts, factor)
	return Mold{
		ID:         id,
		Contour:    pts,
		Type:       TypeCut,
		Multiplier: 1,
		PixelArea:  pixelArea,
		AreaCm2:    d.AreaCm2,
		Dimensions: d,
	}
}

// Replace returns a collection holding molds in order with no selection.
// The id counter carries over.
func (c *Collection) Replace(molds []Mold) *Collection {
	out := &Collection{nextID: c.nextID, molds: make([]Mold, len(molds))}
	copy(out.molds, molds)
	return out
}

// Len returns the number of molds.
func (c *Collection) Len() int {
	return len(c.molds)
}

// Molds returns a copy of the molds in order.
func (c *Collection) Molds() []Mold {
	out := make([]Mold, len(c.molds))
	copy(out, c.molds)
	return out
}

// Get returns the mold with id.
func (c *Collection) Get(id int) (Mold, bool) {
	i := c.index(id)
	if i < 0 {
		return Mold{}, false
	}
	return c.molds[i], true
}

// Selected returns the selected mold, if any.
func (c *Collection) Selected() (Mold, bool) {
	if c.selected == 0 {
		return Mold{}, false
	}
	return c.Get(c.selected)
}

// SelectedID returns the selected id, or 0.
func (c *Collection) SelectedID() int {
	return c.selected
}

// Select returns a collection with id selected. id 0 clears the selection.
func (c *Collection) Select(id int) (*Collection, error) {
	if id != 0 && c.index(id) < 0 {
		return c, fmt.Errorf("%w: id %d", ErrMoldNotFound, id)
	}
	out := c.clone()
	out.selected = id
	return out, nil
}

// SetType returns a collection with only mold id's type changed.
func (c *Collection) SetType(id int, t Type) (*Collection, error) {
	i := c.index(id)
	if i < 0 {
		return c, fmt.Errorf("%w: id %d", ErrMoldNotFound, id)
	}
	out := c.clone()
	out.molds[i].Type = t
	return out, nil
}

// SetMultiplier returns a collection with only mold id's multiplier changed.
func (c *Collection) SetMultiplier(id int, v float64) (*Collection, error) {
	if !validMultiplier(v) {
		return c, fmt.Errorf("%w: got %v", ErrInvalidMultiplier, v)
	}
	i := c.index(id)
	if i < 0 {
		return c, fmt.Errorf("%w: id %d", ErrMoldNotFound, id)
	}
	out := c.clone()
	out.molds[i].Multiplier = v
	return out, nil
}

// Delete returns a collection without mold id. The selection is cleared if
// it pointed at the deleted mold.
func (c *Collection) Delete(id int) (*Collection, error) {
	i := c.index(id)
	if i < 0 {
		return c, fmt.Errorf("%w: id %d", ErrMoldNotFound, id)
	}
	out := &Collection{nextID: c.nextID, selected: c.selected}
	out.molds = make([]Mold, 0, len(c.molds)-1)
	out.molds = append(out.molds, c.molds[:i]...)
	out.molds = append(out.molds, c.molds[i+1:]...)
	if out.selected == id {
		out.selected = 0
	}
	return out, nil
}

// Aggregate sums the current molds.
func (c *Collection) Aggregate() (Result, error) {
	return Aggregate(c.molds)
}

func (c *Collection) index(id int) int {
	for i, m := range c.molds {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) clone() *Collection {
	out := *c
	out.molds = make([]Mold, len(c.molds))
	copy(out.molds, c.molds)
	return &out
}

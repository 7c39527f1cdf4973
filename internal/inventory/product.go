package inventory

import (
	"encoding/json"
)

type Product struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	InStock bool    `json:"inStock"`
}

// Patch is a partial update. A nil field was not supplied and stays untouched.
type Patch struct {
	Name    *string
	Price   *float64
	InStock *bool
}

// Apply overwrites only the supplied fields. The id is never part of a patch.
func (p Patch) Apply(dst Product) Product {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.InStock != nil {
		dst.InStock = *p.InStock
	}
	return dst
}

// marshalCollection renders the persisted form: a JSON array indented with two
// spaces. A nil collection is written as [] rather than null.
func marshalCollection(products []Product) ([]byte, error) {
	if products == nil {
		products = []Product{}
	}
	raw, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

func unmarshalCollection(raw []byte) ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func inStockOnly(products []Product) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.InStock {
			out = append(out, p)
		}
	}
	return out
}

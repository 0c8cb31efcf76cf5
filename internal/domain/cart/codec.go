package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/jsonx"
)

// documentVersion is bumped on incompatible layout changes.
const documentVersion = 1

// EncodeDocument serializes the items of a cart. Totals are derived on read
// and are not part of the document.
func EncodeDocument(items []LineItem) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) {
			e.Int(documentVersion)
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range items {
					encodeLineItem(e, it)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeLineItem(e *jx.Encoder, it LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("unitPrice", func(e *jx.Encoder) { jsonx.Decimal(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(it.Stock) })
		e.Field("vendor", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(it.Vendor.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Vendor.Name) })
				e.Field("subdomain", func(e *jx.Encoder) { e.Str(it.Vendor.Subdomain) })
			})
		})
	})
}

// DecodeDocument parses a document written by EncodeDocument. Lines with an
// empty product id or a non-positive quantity are dropped, and duplicate
// product ids keep their first occurrence.
func DecodeDocument(doc []byte) ([]LineItem, error) {
	var (
		items   []LineItem
		version int
	)
	d := jx.DecodeBytes(doc)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return err
			}
			version = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				items = append(items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart document")
	}
	if version > documentVersion {
		return nil, errors.Errorf("unsupported cart document version %d", version)
	}

	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if _, dup := seen[it.ProductID]; dup {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

func decodeLineItem(d *jx.Decoder) (LineItem, error) {
	var it LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "unitPrice":
			it.UnitPrice, err = jsonx.DecodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "stock":
			it.Stock, err = d.Int()
		case "vendor":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id":
					it.Vendor.ID, err = d.Str()
				case "name":
					it.Vendor.Name, err = d.Str()
				case "subdomain":
					it.Vendor.Subdomain, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

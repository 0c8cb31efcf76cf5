package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/remote"
	"github.com/xenking/kart-storefront/internal/jsonx"
)

// GetByID fetches a product snapshot. It returns product.ErrNotFound for a
// 404 response.
func (c *Client) GetByID(ctx context.Context, id string) (*product.Product, error) {
	body, err := c.do(ctx, "get product", http.MethodGet, "/products/products/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		var respErr *remote.ResponseError
		if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
			return nil, product.ErrNotFound
		}
		return nil, err
	}

	p, err := decodeProduct(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return p, nil
}

// decodeProduct reads a product. The vendor name comes from tenant.name,
// then vendor.name, then tenant_name, defaulting to product.DefaultVendorName.
func decodeProduct(body []byte) (*product.Product, error) {
	var (
		p                                   product.Product
		tenantName, vendorName, tenantField string
		tenantID, vendorID                  string
	)
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = jsonx.DecodeID(d)
		case "name":
			p.Name, err = jsonx.DecodeOptStr(d)
		case "price":
			p.Price, err = jsonx.DecodeDecimal(d)
		case "stock_quantity":
			p.Stock, err = jsonx.DecodeInt(d)
		case "tenant_name":
			tenantField, err = jsonx.DecodeOptStr(d)
		case "tenant":
			if d.Next() != jx.Object {
				tenantID, err = jsonx.DecodeID(d)
				return err
			}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id":
					tenantID, err = jsonx.DecodeID(d)
				case "name":
					tenantName, err = jsonx.DecodeOptStr(d)
				case "subdomain":
					p.Vendor.Subdomain, err = jsonx.DecodeOptStr(d)
				default:
					err = d.Skip()
				}
				return err
			})
		case "vendor":
			if d.Next() != jx.Object {
				vendorID, err = jsonx.DecodeID(d)
				return err
			}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "id":
					vendorID, err = jsonx.DecodeID(d)
				case "name":
					vendorName, err = jsonx.DecodeOptStr(d)
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
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("missing id")
	}

	p.Vendor.ID = firstNonEmpty(vendorID, tenantID)
	p.Vendor.Name = firstNonEmpty(tenantName, vendorName, tenantField, product.DefaultVendorName)
	return &p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

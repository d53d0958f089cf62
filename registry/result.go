package registry

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Shape post-processes a projected backend payload according to the
// descriptor's ResultShape.
func (d *Descriptor) Shape(data []byte, args map[string]any) ([]byte, error) {
	switch d.Result {
	case ResultCreated:
		return createdID(data)
	case ResultResolve:
		ref, _ := args["ref"].(string)
		return resolveRef(data, ref)
	default:
		return data, nil
	}
}

// createdID accepts the shapes a create endpoint answers with: a bare id,
// {"id":N} or {"success":{"id":N}}.
func createdID(data []byte) ([]byte, error) {
	root := gjson.ParseBytes(data)
	var id gjson.Result
	switch {
	case root.Type == gjson.Number, root.Type == gjson.String:
		id = root
	case root.IsObject() && root.Get("id").Exists():
		id = root.Get("id")
	case root.IsObject() && root.Get("success.id").Exists():
		id = root.Get("success.id")
	default:
		return data, nil
	}
	return sjson.SetRawBytes([]byte("{}"), "id", []byte(id.Raw))
}

// resolveRef reduces a product list to an exact reference match.
func resolveRef(data []byte, ref string) ([]byte, error) {
	root := gjson.ParseBytes(data)
	var items []gjson.Result
	if root.IsArray() {
		items = root.Array()
	}

	out := []byte("{}")
	var err error
	switch {
	case len(items) == 0:
		out, err = sjson.SetBytes(out, "status", "not_found")
		if err == nil {
			out, err = sjson.SetBytes(out, "ref", ref)
		}
		return out, err
	case len(items) == 1:
		return resolved(items[0])
	}

	var exact []gjson.Result
	for _, item := range items {
		if item.Get("ref").String() == ref {
			exact = append(exact, item)
		}
	}
	if len(exact) == 1 {
		return resolved(exact[0])
	}
	out, err = sjson.SetBytes(out, "status", "ambiguous")
	if err == nil {
		out, err = sjson.SetRawBytes(out, "products", []byte(root.Raw))
	}
	return out, err
}

func resolved(product gjson.Result) ([]byte, error) {
	out, err := sjson.SetBytes([]byte("{}"), "status", "ok")
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(out, "product", []byte(product.Raw))
}

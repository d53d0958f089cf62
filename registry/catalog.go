package registry

import (
	"net/http"

	"github.com/jonwraymond/erpgate/encode"
)

// Record fields returned by the catalog, in output order.
var (
	customerFields = []string{"id", "name", "name_alias", "email", "phone", "address", "town", "zip", "country_code", "client", "fournisseur", "code_client", "status"}
	productFields  = []string{"id", "ref", "label", "description", "price", "price_ttc", "type", "status", "stock_reel", "barcode"}
	invoiceFields  = []string{"id", "ref", "socid", "date", "date_lim_reglement", "total_ht", "total_tva", "total_ttc", "paye", "status", "lines"}
	orderFields    = []string{"id", "ref", "socid", "date", "total_ht", "total_ttc", "status", "lines"}
	proposalFields = []string{"id", "ref", "socid", "date", "fin_validite", "total_ht", "total_tva", "total_ttc", "status", "lines"}
	projectFields  = []string{"id", "ref", "title", "description", "socid", "status", "date_start", "date_end"}
	contactFields  = []string{"id", "firstname", "lastname", "email", "phone", "socid"}
	userFields     = []string{"id", "login", "lastname", "firstname", "email", "admin", "status"}
	lineFields     = []string{"id", "fk_product", "desc", "qty", "subprice", "total_ht", "total_ttc", "tva_tx"}
)

func project(fields []string) encode.Projection {
	return encode.Projection{Fields: fields}
}

// listing projects list results without document lines, keeping rows flat
// enough for the tabular encoding.
func listing(fields []string) encode.Projection {
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "lines" {
			kept = append(kept, f)
		}
	}
	return encode.Projection{Fields: kept}
}

func projectWithLines(fields []string) encode.Projection {
	return encode.Projection{Fields: fields, Nested: map[string][]string{"lines": lineFields}}
}

// Shared parameter builders.

func limitParam(def int64) ParamSpec {
	return ParamSpec{Name: "limit", Type: TypeInteger, Description: "Maximum number of records", Default: def, Minimum: ptr(1), Maximum: ptr(500)}
}

func pageParam() ParamSpec {
	return ParamSpec{Name: "page", Type: TypeInteger, Description: "Page number", Default: int64(1), Minimum: ptr(0)}
}

func idParam(name, what string) ParamSpec {
	return ParamSpec{Name: name, Type: TypeInteger, Description: what + " ID", Required: true, Minimum: ptr(1), In: InPath}
}

func sortOrderParam() ParamSpec {
	return ParamSpec{Name: "sortorder", Type: TypeString, Description: "Sort order", Default: "DESC", Enum: []any{"ASC", "DESC"}}
}

func dateParams() []ParamSpec {
	return []ParamSpec{
		{Name: "year", Type: TypeInteger, Description: "Restrict to one year", Minimum: ptr(1970), Maximum: ptr(2100), In: InDateRange},
		{Name: "month", Type: TypeInteger, Description: "Restrict to one month (1-12), requires year", Minimum: ptr(1), Maximum: ptr(12), In: InDateRange},
	}
}

func dateBoundParams() []ParamSpec {
	return []ParamSpec{
		{Name: "date_start", Type: TypeString, Description: "Earliest date (YYYY-MM-DD)", In: InDateRange},
		{Name: "date_end", Type: TypeString, Description: "Latest date (YYYY-MM-DD)", In: InDateRange},
	}
}

func socidFilter(required bool) ParamSpec {
	return ParamSpec{
		Name: "socid", Type: TypeInteger, Description: "Customer ID", Required: required,
		Aliases: []string{"customer_id"}, Minimum: ptr(1), In: InFilter, Filter: "(t.fk_soc:=:{value})",
	}
}

func customerRef() ParamSpec {
	return ParamSpec{Name: "customer_id", Type: TypeInteger, Description: "Customer ID", Required: true, Aliases: []string{"socid"}, Backend: "socid", Minimum: ptr(1)}
}

func lineSpec(required bool) *ParamSpec {
	qty := ParamSpec{Name: "qty", Type: TypeNumber, Description: "Quantity", Minimum: ptr(0)}
	subprice := ParamSpec{Name: "subprice", Type: TypeNumber, Description: "Unit price excluding tax"}
	desc := ParamSpec{Name: "desc", Type: TypeString, Description: "Line description", Aliases: []string{"description"}}
	if required {
		qty.Required = true
		subprice.Required = true
	}
	return &ParamSpec{
		Name: "line", Type: TypeObject,
		Fields: []ParamSpec{
			desc,
			qty,
			subprice,
			{Name: "product_id", Type: TypeInteger, Description: "Product ID", Aliases: []string{"fk_product"}, Backend: "fk_product"},
			{Name: "product_type", Type: TypeInteger, Description: "0 for a product, 1 for a service", Enum: []any{0, 1}},
			{Name: "vat", Type: TypeNumber, Description: "VAT rate in percent", Aliases: []string{"tva_tx"}, Backend: "tva_tx"},
			{Name: "remise_percent", Type: TypeNumber, Description: "Discount in percent", Minimum: ptr(0), Maximum: ptr(100)},
		},
	}
}

func linesParam(required bool) ParamSpec {
	return ParamSpec{Name: "lines", Type: TypeArray, Description: "Document lines", Required: required, Items: lineSpec(true)}
}

func lineBodyParams(required bool) []ParamSpec {
	return lineSpec(required).Fields
}

// crud holds the naming of one plain entity.
type crud struct {
	entity   string
	path     string
	singular string
	plural   string
	idName   string
	fields   []string
	paged    bool
	create   []ParamSpec
	prepare  func(body map[string]any)
}

func (c crud) descriptors() []Descriptor {
	list := []ParamSpec{limitParam(100)}
	if c.paged {
		list = append(list, pageParam())
	}
	proj := project(c.fields)
	return []Descriptor{
		{
			Name: "get_" + c.plural, Description: "List " + c.plural, Operation: "list",
			Entity: c.entity, Kind: KindRead, Method: http.MethodGet, Path: c.path,
			Params: list, Projection: proj, Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_" + c.singular + "_by_id", Description: "Get one " + c.singular, Operation: "get",
			Entity: c.entity, Kind: KindRead, Method: http.MethodGet, Path: c.path + "/{" + c.idName + "}",
			Params: []ParamSpec{idParam(c.idName, c.singular)}, Projection: proj,
		},
		{
			Name: "create_" + c.singular, Description: "Create a " + c.singular,
			Entity: c.entity, Kind: KindWrite, Method: http.MethodPost, Path: c.path,
			Params: c.create, OpenBody: true, Result: ResultCreated, Prepare: c.prepare,
		},
		{
			Name: "update_" + c.singular, Description: "Update a " + c.singular,
			Entity: c.entity, Kind: KindWrite, Method: http.MethodPut, Path: c.path + "/{" + c.idName + "}",
			Params: []ParamSpec{idParam(c.idName, c.singular)}, OpenBody: true, Prepare: c.prepare,
		},
		{
			Name: "delete_" + c.singular, Description: "Delete a " + c.singular,
			Entity: c.entity, Kind: KindDelete, Method: http.MethodDelete, Path: c.path + "/{" + c.idName + "}",
			Params: []ParamSpec{idParam(c.idName, c.singular)},
		},
	}
}

// Catalog returns the built-in ERP tool set.
func Catalog() []Descriptor {
	var out []Descriptor
	out = append(out, systemTools()...)
	out = append(out, searchTools()...)
	for _, c := range plainEntities() {
		out = append(out, c.descriptors()...)
	}
	out = append(out, invoiceTools()...)
	out = append(out, orderTools()...)
	out = append(out, proposalTools()...)
	out = append(out, rawTool())
	return out
}

func systemTools() []Descriptor {
	return []Descriptor{
		{
			Name: "test_connection", Description: "Check that the ERP backend is reachable",
			Entity: "status", Kind: KindRead, Method: http.MethodGet, Path: "status", NoCache: true,
		},
		{
			Name: "get_status", Description: "Get ERP version and status",
			Entity: "status", Kind: KindRead, Method: http.MethodGet, Path: "status",
		},
	}
}

func searchTools() []Descriptor {
	return []Descriptor{
		{
			Name: "search_products_by_ref", Description: "Find products whose reference starts with a prefix",
			Entity: "products", Kind: KindRead, Method: http.MethodGet, Path: "products",
			Params: []ParamSpec{
				{Name: "ref_prefix", Type: TypeString, Description: "Reference prefix", Required: true, In: InFilter, Filter: "(t.ref:like:'{value}%')"},
				limitParam(20),
			},
			Projection: project(productFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "search_products_by_label", Description: "Find products whose label contains a text",
			Entity: "products", Kind: KindRead, Method: http.MethodGet, Path: "products",
			Params: []ParamSpec{
				{Name: "query", Type: TypeString, Description: "Text to look for", Required: true, In: InFilter, Filter: "(t.label:like:'%{value}%')"},
				limitParam(20),
			},
			Projection: project(productFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "resolve_product_ref", Description: "Resolve an exact product reference",
			Entity: "products", Kind: KindRead, Method: http.MethodGet, Path: "products",
			Params: []ParamSpec{
				{Name: "ref", Type: TypeString, Description: "Exact product reference", Required: true, In: InFilter, Filter: "(t.ref:like:'{value}')"},
			},
			Query:      map[string]string{"limit": "2"},
			Projection: project(productFields), EmptyOnNotFound: true, Result: ResultResolve,
		},
		{
			Name: "search_customers", Description: "Find customers by name or alias",
			Entity: "customers", Kind: KindRead, Method: http.MethodGet, Path: "thirdparties",
			Params: []ParamSpec{
				{Name: "query", Type: TypeString, Description: "Text to look for", Required: true, In: InFilter, Filter: "((t.nom:like:'%{value}%') OR (t.name_alias:like:'%{value}%'))"},
				limitParam(20),
			},
			Projection: project(customerFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "search_projects", Description: "Find projects by reference or title",
			Entity: "projects", Kind: KindRead, Method: http.MethodGet, Path: "projects",
			Params: []ParamSpec{
				{Name: "query", Type: TypeString, Description: "Text to look for", Required: true, In: InFilter, Filter: "((t.ref:like:'%{value}%') OR (t.title:like:'%{value}%'))"},
				limitParam(20),
			},
			Projection: project(projectFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "search_proposals", Description: "Find proposals by reference or customer name",
			Entity: "proposals", Kind: KindRead, Method: http.MethodGet, Path: "proposals",
			Params: []ParamSpec{
				{Name: "query", Type: TypeString, Description: "Text to look for", Required: true, In: InFilter, Filter: "((t.ref:like:'%{value}%') OR (s.nom:like:'%{value}%'))"},
				limitParam(20),
			},
			Query:      map[string]string{"sortfield": "t.datep", "sortorder": "DESC"},
			Projection: listing(proposalFields), Paginated: true, EmptyOnNotFound: true,
		},
	}
}

func plainEntities() []crud {
	return []crud{
		{
			entity: "users", path: "users", singular: "user", plural: "users", idName: "user_id",
			fields: userFields, paged: true,
			create: []ParamSpec{
				{Name: "login", Type: TypeString, Description: "Login name", Required: true},
				{Name: "lastname", Type: TypeString, Description: "Last name", Required: true},
				{Name: "firstname", Type: TypeString, Description: "First name"},
				{Name: "email", Type: TypeString, Description: "Email address"},
				{Name: "password", Type: TypeString, Description: "Initial password"},
				{Name: "admin", Type: TypeInteger, Description: "1 for an administrator", Enum: []any{0, 1}},
			},
		},
		{
			entity: "customers", path: "thirdparties", singular: "customer", plural: "customers", idName: "customer_id",
			fields: customerFields, paged: true,
			create: []ParamSpec{
				{Name: "name", Type: TypeString, Description: "Company or person name", Required: true},
				{Name: "email", Type: TypeString, Description: "Email address"},
				{Name: "phone", Type: TypeString, Description: "Phone number"},
				{Name: "address", Type: TypeString, Description: "Street address"},
				{Name: "town", Type: TypeString, Description: "Town"},
				{Name: "zip", Type: TypeString, Description: "Postal code"},
				{Name: "country_id", Type: TypeInteger, Description: "Country ID", Default: int64(1)},
				{Name: "type", Type: TypeInteger, Description: "1 customer, 2 supplier, 3 both", Default: int64(1), Enum: []any{1, 2, 3}},
				{Name: "status", Type: TypeInteger, Description: "1 active, 0 inactive", Default: int64(1), Enum: []any{0, 1}},
			},
			prepare: thirdpartyRoles,
		},
		{
			entity: "products", path: "products", singular: "product", plural: "products", idName: "product_id",
			fields: productFields,
			create: []ParamSpec{
				{Name: "ref", Type: TypeString, Description: "Product reference", Required: true},
				{Name: "label", Type: TypeString, Description: "Product label", Required: true},
				{Name: "price", Type: TypeNumber, Description: "Selling price excluding tax", Minimum: ptr(0)},
				{Name: "description", Type: TypeString, Description: "Long description"},
				{Name: "type", Type: TypeInteger, Description: "0 for a product, 1 for a service", Default: int64(0), Enum: []any{0, 1}},
				{Name: "tva_tx", Type: TypeNumber, Description: "VAT rate in percent", Aliases: []string{"vat"}},
			},
		},
		{
			entity: "contacts", path: "contacts", singular: "contact", plural: "contacts", idName: "contact_id",
			fields: contactFields,
			create: []ParamSpec{
				{Name: "lastname", Type: TypeString, Description: "Last name", Required: true},
				{Name: "firstname", Type: TypeString, Description: "First name"},
				{Name: "email", Type: TypeString, Description: "Email address"},
				{Name: "phone", Type: TypeString, Description: "Phone number", Backend: "phone_pro"},
				{Name: "customer_id", Type: TypeInteger, Description: "Customer ID", Aliases: []string{"socid"}, Backend: "socid"},
			},
		},
		{
			entity: "projects", path: "projects", singular: "project", plural: "projects", idName: "project_id",
			fields: projectFields,
			create: []ParamSpec{
				{Name: "ref", Type: TypeString, Description: "Project reference", Required: true},
				{Name: "title", Type: TypeString, Description: "Project title", Required: true},
				{Name: "description", Type: TypeString, Description: "Description"},
				{Name: "customer_id", Type: TypeInteger, Description: "Customer ID", Aliases: []string{"socid"}, Backend: "socid"},
			},
		},
	}
}

func invoiceTools() []Descriptor {
	status := ParamSpec{Name: "status", Type: TypeString, Description: "Invoice status", Enum: []any{"draft", "unpaid", "paid"}}
	invoice := idParam("invoice_id", "Invoice")
	line := idParam("line_id", "Line")

	list := append([]ParamSpec{limitParam(50), status, socidFilter(false)}, dateParams()...)
	list = append(list, dateBoundParams()...)
	list = append(list, sortOrderParam())

	customer := append([]ParamSpec{socidFilter(true), limitParam(10), status}, dateParams()...)

	return []Descriptor{
		{
			Name: "get_invoices", Description: "List invoices with optional status, customer and date filters", Operation: "list",
			Entity: "invoices", Kind: KindRead, Method: http.MethodGet, Path: "invoices",
			Params: list, Query: map[string]string{"sortfield": "t.datef"}, DateColumn: "t.datef",
			Projection: listing(invoiceFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_customer_invoices", Description: "List the latest invoices of one customer", Operation: "customer_list",
			Entity: "invoices", Kind: KindRead, Method: http.MethodGet, Path: "invoices",
			Params: customer, Query: map[string]string{"sortfield": "t.datef", "sortorder": "DESC"}, DateColumn: "t.datef",
			Projection: listing(invoiceFields), Scope: "socid", Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_invoice_by_id", Description: "Get one invoice with its lines", Operation: "get",
			Entity: "invoices", Kind: KindRead, Method: http.MethodGet, Path: "invoices/{invoice_id}",
			Params: []ParamSpec{invoice}, Projection: projectWithLines(invoiceFields),
		},
		{
			Name: "create_invoice", Description: "Create a draft invoice for a customer",
			Entity: "invoices", Kind: KindWrite, Method: http.MethodPost, Path: "invoices",
			Params: []ParamSpec{
				customerRef(),
				linesParam(true),
				{Name: "date", Type: TypeString, Description: "Invoice date (YYYY-MM-DD)"},
				{Name: "due_date", Type: TypeString, Description: "Due date (YYYY-MM-DD)", Backend: "date_lim_reglement"},
			},
			OpenBody: true, Scope: "customer_id", Result: ResultCreated,
		},
		{
			Name: "update_invoice", Description: "Update a draft invoice",
			Entity: "invoices", Kind: KindWrite, Method: http.MethodPut, Path: "invoices/{invoice_id}",
			Params: []ParamSpec{invoice}, OpenBody: true,
		},
		{
			Name: "delete_invoice", Description: "Delete a draft invoice",
			Entity: "invoices", Kind: KindDelete, Method: http.MethodDelete, Path: "invoices/{invoice_id}",
			Params: []ParamSpec{invoice},
		},
		{
			Name: "add_invoice_line", Description: "Add a line to a draft invoice",
			Entity: "invoices", Kind: KindWrite, Method: http.MethodPost, Path: "invoices/{invoice_id}/lines",
			Params: append([]ParamSpec{invoice}, lineBodyParams(true)...), Result: ResultCreated,
		},
		{
			Name: "update_invoice_line", Description: "Update a line of a draft invoice",
			Entity: "invoices", Kind: KindWrite, Method: http.MethodPut, Path: "invoices/{invoice_id}/lines/{line_id}",
			Params: append([]ParamSpec{invoice, line}, lineBodyParams(false)...),
		},
		{
			Name: "delete_invoice_line", Description: "Delete a line of a draft invoice",
			Entity: "invoices", Kind: KindDelete, Method: http.MethodDelete, Path: "invoices/{invoice_id}/lines/{line_id}",
			Params: []ParamSpec{invoice, line},
		},
		{
			Name: "validate_invoice", Description: "Validate a draft invoice",
			Entity: "invoices", Kind: KindWrite, Method: http.MethodPost, Path: "invoices/{invoice_id}/validate",
			Params: []ParamSpec{
				invoice,
				{Name: "warehouse_id", Type: TypeInteger, Description: "Warehouse for stock movements", Default: int64(0), Backend: "idwarehouse"},
			},
			Body: map[string]any{"notrigger": 0},
		},
	}
}

func orderTools() []Descriptor {
	status := ParamSpec{Name: "status", Type: TypeInteger, Description: "Order status", In: InFilter, Filter: "(t.fk_statut:=:{value})"}
	order := idParam("order_id", "Order")

	list := append([]ParamSpec{limitParam(50), status, socidFilter(false)}, dateParams()...)
	list = append(list, dateBoundParams()...)
	list = append(list, sortOrderParam())

	customer := append([]ParamSpec{socidFilter(true), limitParam(10), status}, dateParams()...)

	return []Descriptor{
		{
			Name: "get_orders", Description: "List orders with optional status, customer and date filters", Operation: "list",
			Entity: "orders", Kind: KindRead, Method: http.MethodGet, Path: "orders",
			Params: list, Query: map[string]string{"sortfield": "t.date_commande"}, DateColumn: "t.date_commande",
			Projection: listing(orderFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_customer_orders", Description: "List the latest orders of one customer", Operation: "customer_list",
			Entity: "orders", Kind: KindRead, Method: http.MethodGet, Path: "orders",
			Params: customer, Query: map[string]string{"sortfield": "t.date_commande", "sortorder": "DESC"}, DateColumn: "t.date_commande",
			Projection: listing(orderFields), Scope: "socid", Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_order_by_id", Description: "Get one order with its lines", Operation: "get",
			Entity: "orders", Kind: KindRead, Method: http.MethodGet, Path: "orders/{order_id}",
			Params: []ParamSpec{order}, Projection: projectWithLines(orderFields),
		},
		{
			Name: "create_order", Description: "Create a draft order for a customer",
			Entity: "orders", Kind: KindWrite, Method: http.MethodPost, Path: "orders",
			Params: []ParamSpec{
				customerRef(),
				linesParam(false),
				{Name: "date", Type: TypeString, Description: "Order date (YYYY-MM-DD)"},
			},
			OpenBody: true, Scope: "customer_id", Result: ResultCreated,
		},
		{
			Name: "update_order", Description: "Update a draft order",
			Entity: "orders", Kind: KindWrite, Method: http.MethodPut, Path: "orders/{order_id}",
			Params: []ParamSpec{order}, OpenBody: true,
		},
		{
			Name: "delete_order", Description: "Delete a draft order",
			Entity: "orders", Kind: KindDelete, Method: http.MethodDelete, Path: "orders/{order_id}",
			Params: []ParamSpec{order},
		},
	}
}

func proposalTools() []Descriptor {
	proposal := idParam("proposal_id", "Proposal")
	line := idParam("line_id", "Line")
	status := ParamSpec{Name: "status", Type: TypeInteger, Description: "0 draft, 1 validated, 2 signed, 3 refused", Enum: []any{0, 1, 2, 3}, In: InFilter, Filter: "(t.fk_statut:=:{value})"}
	statuses := ParamSpec{
		Name: "statuses", Type: TypeArray, Description: "Any of several statuses",
		Items: &ParamSpec{Name: "status", Type: TypeInteger, Enum: []any{0, 1, 2, 3}},
		In:    InFilter, Filter: "(t.fk_statut:=:{value})",
	}

	list := append([]ParamSpec{limitParam(50), status, socidFilter(false)}, dateParams()...)
	list = append(list, dateBoundParams()...)
	list = append(list, sortOrderParam())

	customer := append([]ParamSpec{socidFilter(true), limitParam(10), status, statuses}, dateParams()...)

	notes := []ParamSpec{
		{Name: "note_public", Type: TypeString, Description: "Note shown to the customer"},
		{Name: "note_private", Type: TypeString, Description: "Internal note"},
	}

	create := append([]ParamSpec{
		customerRef(),
		{Name: "project_id", Type: TypeInteger, Description: "Project ID", Backend: "fk_project"},
		{Name: "duree_validite", Type: TypeInteger, Description: "Validity in days", Default: int64(30), Minimum: ptr(1)},
		linesParam(false),
	}, notes...)

	update := append([]ParamSpec{
		proposal,
		{Name: "duree_validite", Type: TypeInteger, Description: "Validity in days", Minimum: ptr(1)},
		{Name: "ref_client", Type: TypeString, Description: "Customer reference"},
		{Name: "project_id", Type: TypeInteger, Description: "Project ID", Aliases: []string{"fk_project"}, Backend: "fk_project"},
	}, notes...)

	return []Descriptor{
		{
			Name: "get_proposals", Description: "List proposals with optional status, customer and date filters", Operation: "list",
			Entity: "proposals", Kind: KindRead, Method: http.MethodGet, Path: "proposals",
			Params: list, Query: map[string]string{"sortfield": "t.datep"}, DateColumn: "t.datep",
			Projection: listing(proposalFields), Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_customer_proposals", Description: "List the latest proposals of one customer", Operation: "customer_list",
			Entity: "proposals", Kind: KindRead, Method: http.MethodGet, Path: "proposals",
			Params: customer, Query: map[string]string{"sortfield": "t.datep", "sortorder": "DESC"}, DateColumn: "t.datep",
			Projection: listing(proposalFields), Scope: "socid", Paginated: true, EmptyOnNotFound: true,
		},
		{
			Name: "get_proposal_by_id", Description: "Get one proposal with its lines", Operation: "get",
			Entity: "proposals", Kind: KindRead, Method: http.MethodGet, Path: "proposals/{proposal_id}",
			Params: []ParamSpec{proposal}, Projection: projectWithLines(proposalFields),
		},
		{
			Name: "create_proposal", Description: "Create a draft proposal for a customer",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPost, Path: "proposals",
			Params: create, OpenBody: true, Scope: "customer_id", Result: ResultCreated,
		},
		{
			Name: "update_proposal", Description: "Update a draft proposal",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPut, Path: "proposals/{proposal_id}",
			Params: update,
		},
		{
			Name: "delete_proposal", Description: "Delete a proposal",
			Entity: "proposals", Kind: KindDelete, Method: http.MethodDelete, Path: "proposals/{proposal_id}",
			Params: []ParamSpec{proposal},
		},
		{
			Name: "add_proposal_line", Description: "Add a line to a draft proposal",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPost, Path: "proposals/{proposal_id}/lines",
			Params: append([]ParamSpec{proposal}, lineBodyParams(true)...), Result: ResultCreated,
		},
		{
			Name: "update_proposal_line", Description: "Update a line of a draft proposal",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPut, Path: "proposals/{proposal_id}/lines/{line_id}",
			Params: append([]ParamSpec{proposal, line}, lineBodyParams(false)...),
		},
		{
			Name: "delete_proposal_line", Description: "Delete a line of a draft proposal",
			Entity: "proposals", Kind: KindDelete, Method: http.MethodDelete, Path: "proposals/{proposal_id}/lines/{line_id}",
			Params: []ParamSpec{proposal, line},
		},
		{
			Name: "validate_proposal", Description: "Validate a draft proposal",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPost, Path: "proposals/{proposal_id}/validate",
			Params: []ParamSpec{proposal}, Body: map[string]any{"notrigger": 0},
		},
		{
			Name: "close_proposal", Description: "Close a validated proposal as signed or refused",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPost, Path: "proposals/{proposal_id}/close",
			Params: []ParamSpec{
				proposal,
				{Name: "status", Type: TypeInteger, Description: "2 signed, 3 refused", Required: true, Enum: []any{2, 3}},
				{Name: "note", Type: TypeString, Description: "Closing note", Backend: "note_private"},
			},
			Body: map[string]any{"notrigger": 0},
		},
		{
			Name: "set_proposal_to_draft", Description: "Return a validated proposal to draft",
			Entity: "proposals", Kind: KindWrite, Method: http.MethodPost, Path: "proposals/{proposal_id}/settodraft",
			Params: []ParamSpec{proposal},
		},
	}
}

func rawTool() Descriptor {
	return Descriptor{
		Name:        "dolibarr_raw_api",
		Description: "Call any backend endpoint directly",
		Entity:      "raw",
		Kind:        KindWrite,
		Operation:   "raw",
		Raw:         true,
		NoCache:     true,
		Params: []ParamSpec{
			{Name: "method", Type: TypeString, Description: "HTTP method", Required: true, Enum: []any{"GET", "POST", "PUT", "DELETE"}, In: InNone},
			{Name: "endpoint", Type: TypeString, Description: "API path relative to the base URL, for example invoices/12", Required: true, In: InNone},
			{Name: "params", Type: TypeObject, Description: "Query parameters", In: InNone},
			{Name: "data", Type: TypeObject, Description: "JSON body", In: InNone},
		},
	}
}

// thirdpartyRoles turns the caller-facing "type" into the backend's
// client and fournisseur flags. Explicit flags win.
func thirdpartyRoles(body map[string]any) {
	v, ok := body["type"]
	if !ok {
		return
	}
	delete(body, "type")
	t, err := toInt(v)
	if err != nil {
		return
	}
	if _, set := body["client"]; !set {
		body["client"] = boolFlag(t == 1 || t == 3)
	}
	if _, set := body["fournisseur"]; !set {
		body["fournisseur"] = boolFlag(t == 2 || t == 3)
	}
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

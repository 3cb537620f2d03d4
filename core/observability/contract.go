package observability

// Attribute keys shared by spans and metric instruments
const (
	AttrRequestID   = "request.id"
	AttrDataSource  = "datasource.name"
	AttrEngine      = "db.system"
	AttrAdapterName = "adapter.name"
	AttrOperation   = "gateway.operation"
	AttrRowCount    = "db.response.returned_rows"
	AttrErrorKind   = "error.type"
)

package logfield

const (
	RunID              = "runID"
	JobName            = "jobName"
	Stage              = "stage"
	StatusCode         = "statusCode"
	ProjectID          = "projectID"
	Dataset            = "dataset"
	TableName          = "tableName"
	Watermark          = "watermark"
	Cursor             = "cursor"
	FetchedRows        = "fetchedRows"
	LoadedRows         = "loadedRows"
	Query              = "query"
	QueryExecutionTime = "queryExecutionTime"
	LoadJobID          = "loadJobID"
)

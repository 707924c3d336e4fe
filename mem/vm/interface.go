package vm

// DataRecorder models the table operations the EventTracer needs. It is
// implemented by datarecording.DataRecorder.
type DataRecorder interface {
	CreateTable(tableName string, sampleEntry any)
	InsertData(tableName string, entry any)
}

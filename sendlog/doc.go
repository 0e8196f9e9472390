package sendlog

// sendlog records the outcome of each send attempt as one comma-separated
// line appended to a caller-owned file. The file has no header row and
// embedded commas in error messages are not escaped, so it's meant for
// people to read (or grep), not for structured queries. The file is opened
// and closed on every append and no locking is done between writers.

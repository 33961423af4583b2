// Package dataset provides the read-only tabular value handed to the sandbox.
//
// A Frame is column-major: an ordered list of typed columns and one series per
// column, all of the same length. Frames are immutable once constructed.
// Accessors return copies and derived frames (Take) are new values, so a
// single Frame can be shared by reference across concurrent executions.
//
// Frames are usually built from CSV input:
//
//	frame, err := dataset.LoadCSV("sales.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, cols := frame.Shape()
package dataset

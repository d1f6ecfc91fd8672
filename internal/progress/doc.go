// Package progress renders per-file download progress.
//
// A Frame is rendered as
//
//	<label> [<errors>] <percent> [=====>    ] ETA <eta> <rate> (<current>/<total>)
//
// where rate and ETA are computed over a trailing sample window. On a terminal
// the frame is redrawn in place; otherwise a line is logged periodically.
package progress

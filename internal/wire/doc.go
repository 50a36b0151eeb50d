// Package wire implements the Means to an End binary frame codec.
//
// Requests are fixed 9-byte frames with no delimiter:
//
//	offset 0  1 byte   type tag ('I' insert, 'Q' query)
//	offset 1  4 bytes  int32 big-endian (timestamp or mintime)
//	offset 5  4 bytes  int32 big-endian (price or maxtime)
//
// Responses are a single big-endian int32 and are only sent for queries.
package wire

// Package primetime implements the Prime Time handler.
//
// Requests and responses are newline-delimited JSON objects:
//
//	-> {"method":"isPrime","number":123}
//	<- {"method":"isPrime","prime":false}
//
// A malformed request is answered with an error object and the connection is closed.
package primetime

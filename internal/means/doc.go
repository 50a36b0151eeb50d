// Package means implements the Means to an End connection handler.
//
// Each connection owns a private session.Store. Insert frames append to it and
// produce no output; Query frames are answered with the truncated mean of the
// matching prices. The session ends when the peer closes its write side (even
// part way through a frame) or sends a frame with an unknown type tag.
package means

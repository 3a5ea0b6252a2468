// Package protocol defines the broadcast wire format for selection and
// highlight synchronization.
//
// Every operation is an absolute assignment ("set membership to X", "set
// remaining to N"), so duplicate or reordered delivery converges to the same
// state. Messages are JSON; optional fields are pointers so missing required
// fields can be rejected at decode time.
package protocol

// Package highlight turns matched text into display segments, cutting long
// messages to a window around the first match.
package highlight

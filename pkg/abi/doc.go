/*
Package abi implements the contract ABI encoding used to build call data and
to decode call results.

Types are described by Type (unsigned integers of 8..256 bits, addresses,
booleans, strings, byte sequences, fixed and dynamic arrays of any of them)
and values are carried by Value, a pair of a Type and a Go representation of
the value. Encoding follows the head/tail scheme: every element occupies a
32-byte aligned slot in the head, dynamic elements store an offset there
pointing to a length-prefixed payload appended to the tail. Arbitrary
nesting is supported in both directions.
*/
package abi

// Package packer lays out axis-aligned rectangles inside a compact bounding
// box using a greedy shelf heuristic. It knows nothing about textures: the
// input is a list of sizes and the output is a position per input index plus
// the overall extent.
//
// A Solver is single use. Packer wraps it with input validation and runs a
// new Solver for every call.
package packer

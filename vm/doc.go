// Package vm implements the jolt bytecode interpreter.
//
// This package contains:
//   - Tagged value representation (int, long, float, double, reference, return address)
//   - Runtime classes with vtables, static storage and lazy initialization
//   - Objects with per-declaring-class field buckets, and arrays
//   - The class registry and symbolic method/field resolution
//   - Frames, the thread context and its step loop
//   - One handler per opcode family, dispatched through an indexed table
//   - Native method bridge
package vm

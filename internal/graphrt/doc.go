// Package graphrt is the boundary between the model adapters and a compiled
// graph: tensor descriptors and dtype conversion, the topology JSON and
// NDArray-list parameter codecs, compiled module loading, and a graph
// executor that plans storage from the topology and dispatches each operator
// node to the matching kernel of the compiled module.
//
// Operator kernels are never implemented here. They come from the compiled
// library (a native shared object) or, in tests and embedded setups, from a
// FuncModule.
package graphrt

package helper

// ToolID identifies this library in provenance records.
const ToolID = "kgraph"

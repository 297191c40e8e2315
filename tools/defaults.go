package tools

// DefaultRegistry returns a registry loaded with the full code-reading
// toolset, all confined to the given root directory.
func DefaultRegistry(root string) *Registry {
	r := NewRegistry()
	r.Register(NewReadFileTool(root))
	r.Register(NewListDirTool(root))
	r.Register(NewFileInfoTool(root))
	r.Register(NewFindFilesTool(root))
	r.Register(NewSearchCodeTool(root))
	r.Register(NewFindByExtTool(root))
	return r
}

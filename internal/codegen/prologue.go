// Package codegen renders resolved calls into a single C++ translation unit
// that links against the secure-computation primitive library.
package codegen

import "strings"

// Include is one required declaration of the generated program.
type Include struct {
	Path   string
	System bool
}

func (i Include) String() string {
	if i.System {
		return "#include <" + i.Path + ">"
	}
	return "#include \"" + i.Path + "\""
}

// Prologue lists every declaration the generated program needs. Project
// headers are relative to the primitive library root, which the build driver
// passes to the toolchain as an include directory.
var Prologue = []Include{
	{Path: "iostream", System: true},
	{Path: "functional", System: true},
	{Path: "map", System: true},
	{Path: "string", System: true},
	{Path: "vector", System: true},
	{Path: "comm/comm.hpp"},
	{Path: "fss-base/dcf/distributed_comparison_function.hpp"},
	{Path: "fss-base/ddcf/dual_dcf.hpp"},
	{Path: "fss-base/dpf/distributed_point_function.hpp"},
	{Path: "fss-base/prg/prg.hpp"},
	{Path: "fss-gate/comp/integer_comparison.hpp"},
	{Path: "fss-gate/fm-index/fss_fmi.hpp"},
	{Path: "fss-gate/internal/fsskey_io.hpp"},
	{Path: "fss-gate/rank/fss_rank.hpp"},
	{Path: "fss-gate/zt/zero_test_dpf.hpp"},
	{Path: "tools/secret_sharing.hpp"},
	{Path: "tools/tools.hpp"},
	{Path: "utils/file_io.hpp"},
	{Path: "utils/utils.hpp"},
}

// prologueText is Prologue rendered once.
var prologueText = renderPrologue(Prologue)

func renderPrologue(includes []Include) string {
	var b strings.Builder
	for _, inc := range includes {
		b.WriteString(inc.String())
		b.WriteByte('\n')
	}
	return b.String()
}

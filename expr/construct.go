package expr

import (
	"strconv"
	"strings"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

// CreateList builds a PList column from one sub-expression per element
// (spec §4.7 CreateList); all elements must share ElemType.
type CreateList struct {
	Elements []Expr
	ElemType types.DataType
}

func (c CreateList) Type() types.DataType { return listTypeOf(c.ElemType) }

func (c CreateList) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	cols := make([]*colarray.Array, len(c.Elements))
	for i, e := range c.Elements {
		arr, err := e.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
		cols[i] = arr
	}
	n := chunk.Len()
	out := make([]types.Value, n)
	for row := 0; row < n; row++ {
		vals := make([]types.Value, len(cols))
		for i, col := range cols {
			vals[i] = valueAt(c.ElemType, col, row)
		}
		out[row] = listOfValues(c.ElemType, vals)
	}
	return buildArray(c.Type(), out), nil
}

func listTypeOf(elem types.DataType) types.DataType {
	switch elem {
	case types.DTBool:
		return types.DTListBool
	case types.DTInt:
		return types.DTListInt
	case types.DTFloat:
		return types.DTListFloat
	case types.DTString:
		return types.DTListString
	default:
		return types.DTListString
	}
}

func listOfValues(elem types.DataType, vals []types.Value) types.Value {
	switch elem {
	case types.DTBool:
		out := make([]bool, len(vals))
		for i, v := range vals {
			out[i] = v.Bool
		}
		return types.NewListBool(out)
	case types.DTFloat:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = v.Float
		}
		return types.NewListFloat(out)
	case types.DTString:
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = v.Str
		}
		return types.NewListString(out)
	default:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.Int
		}
		return types.NewListInt(out)
	}
}

// CreateStruct materializes a PStruct column from named field
// sub-expressions (spec §4.7 CreateStruct). Property map literals
// (CreateMap) share this implementation: Cypher map-literal keys are
// static, so `{a: 1, b: 2}` is structurally a struct with known fields.
type CreateStruct struct {
	Names  []string
	Fields []Expr
}

func (CreateStruct) Type() types.DataType { return types.DTStruct }

func (c CreateStruct) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	children := make([]*colarray.Array, len(c.Fields))
	for i, f := range c.Fields {
		arr, err := f.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
		children[i] = arr
	}
	return colarray.NewStructArray(c.Names, children, colarray.NewMaskAllValid(chunk.Len())), nil
}

// ProjectPath interleaves node and rel step columns into a path array,
// strictly alternating starting and ending on a node (spec §4.7
// ProjectPath; invariant check grounded on
// _examples/original_source/src/cypher/src/expr/project_path.rs).
type ProjectPath struct {
	// Steps alternates Variable/PropertyAccess-ish node exprs and rel
	// exprs: Nodes[0], Rels[0], Nodes[1], Rels[1], ..., Nodes[k].
	Nodes []Expr
	Rels  []Expr
	// Virtual is true when every step expression yields a virtual-node
	// or virtual-rel array rather than a materialized one.
	Virtual bool
}

func (p ProjectPath) Type() types.DataType {
	if p.Virtual {
		return types.DTVirtualPath
	}
	return types.DTPath
}

func (p ProjectPath) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	if len(p.Nodes) != len(p.Rels)+1 {
		return nil, types.NewError(types.KindEval, "project_path",
			"path must start and end on a node: len(nodes) != len(rels)+1")
	}
	nodeCols := make([]*colarray.Array, len(p.Nodes))
	for i, e := range p.Nodes {
		arr, err := e.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
		nodeCols[i] = arr
	}
	relCols := make([]*colarray.Array, len(p.Rels))
	for i, e := range p.Rels {
		arr, err := e.EvalBatch(chunk, ctx)
		if err != nil {
			return nil, err
		}
		relCols[i] = arr
	}

	n := chunk.Len()
	nodePhys := colarray.PNode
	relPhys := colarray.PRel
	if p.Virtual {
		nodePhys, relPhys = colarray.PVirtualNode, colarray.PVirtualRel
	}

	nodeList := colarray.NewListBuilder()
	relList := colarray.NewListBuilder()
	nodeChildIDs := make([]types.NodeId, 0, n*len(nodeCols))
	var nodeChildLabels [][]types.LabelId
	var nodeChildProps [][]byte
	relChildIDs := make([]types.RelationshipId, 0, n*len(relCols))
	var relChildTypes []types.RelTypeId
	var relChildStarts, relChildEnds []types.NodeId
	var relChildProps [][]byte

	for row := 0; row < n; row++ {
		for _, col := range nodeCols {
			id := nodeIDAt(col, row)
			nodeChildIDs = append(nodeChildIDs, id)
			if !p.Virtual {
				lbl, props := nodeFieldsAt(col, row)
				nodeChildLabels = append(nodeChildLabels, lbl)
				nodeChildProps = append(nodeChildProps, props)
			}
		}
		nodeList.PushLen(len(nodeCols))

		for _, col := range relCols {
			id := relIDAt(col, row)
			relChildIDs = append(relChildIDs, id)
			if !p.Virtual {
				rt, s, e, props := relFieldsAt(col, row)
				relChildTypes = append(relChildTypes, rt)
				relChildStarts = append(relChildStarts, s)
				relChildEnds = append(relChildEnds, e)
				relChildProps = append(relChildProps, props)
			}
		}
		relList.PushLen(len(relCols))
	}

	nodeChild := &colarray.Array{Phys: nodePhys, NodeIDs: nodeChildIDs, NodeLabels: nodeChildLabels, NodeProps: nodeChildProps, Valid: colarray.NewMaskAllValid(len(nodeChildIDs))}
	relChild := &colarray.Array{Phys: relPhys, RelIDs: relChildIDs, RelTypes: relChildTypes, RelStarts: relChildStarts, RelEnds: relChildEnds, RelProps: relChildProps, Valid: colarray.NewMaskAllValid(len(relChildIDs))}

	pathNodes := nodeList.Finish(nodeChild)
	pathRels := relList.Finish(relChild)

	phys := colarray.PPath
	if p.Virtual {
		phys = colarray.PVirtualPath
	}
	return &colarray.Array{Phys: phys, PathNodes: pathNodes, PathRels: pathRels, Valid: colarray.NewMaskAllValid(n)}, nil
}

func nodeIDAt(a *colarray.Array, row int) types.NodeId {
	if a.Phys == colarray.PNode || a.Phys == colarray.PVirtualNode {
		return a.NodeIDs[row]
	}
	return 0
}

func nodeFieldsAt(a *colarray.Array, row int) ([]types.LabelId, []byte) {
	if a.Phys == colarray.PNode {
		return a.NodeLabels[row], a.NodeProps[row]
	}
	return nil, nil
}

func relIDAt(a *colarray.Array, row int) types.RelationshipId {
	if a.Phys == colarray.PRel || a.Phys == colarray.PVirtualRel {
		return a.RelIDs[row]
	}
	return 0
}

func relFieldsAt(a *colarray.Array, row int) (types.RelTypeId, types.NodeId, types.NodeId, []byte) {
	if a.Phys == colarray.PRel {
		return a.RelTypes[row], a.RelStarts[row], a.RelEnds[row], a.RelProps[row]
	}
	return 0, 0, 0, nil
}

// ProjectVarPath builds a path value off a variable-length relationship
// pattern (spec §4.10 VarExpand), whose per-row hop count ProjectPath's
// fixed Nodes/Rels lists cannot represent. Start is the traversal's fixed
// endpoint; PathVar names the column VarExpand encodes its hit's
// relationship-id path into (exec/varexpand.go encodeRelPath). The far
// endpoint isn't a separate input: walking each relationship from Start
// reconstructs it.
type ProjectVarPath struct {
	Start   Expr
	PathVar string
}

func (ProjectVarPath) Type() types.DataType { return types.DTVirtualPath }

func (p ProjectVarPath) EvalBatch(chunk *colarray.DataChunk, ctx *Context) (*colarray.Array, error) {
	idx := chunk.Schema.IndexOf(p.PathVar)
	if idx < 0 {
		return nil, types.NewError(types.KindBuild, "project_var_path", "path variable not found in chunk schema: "+p.PathVar)
	}
	pathCol := chunk.Columns[idx]

	startCol, err := p.Start.EvalBatch(chunk, ctx)
	if err != nil {
		return nil, err
	}

	n := chunk.Len()
	perRow := make([][]types.RelationshipId, n)
	var allRelIDs []types.RelationshipId
	for row := 0; row < n; row++ {
		ids := decodeRelPath(pathCol.StringAt(row))
		perRow[row] = ids
		allRelIDs = append(allRelIDs, ids...)
	}

	relIDArr := &colarray.Array{Phys: colarray.PVirtualRel, RelIDs: allRelIDs, Valid: colarray.NewMaskAllValid(len(allRelIDs))}
	fullRels, err := ctx.Mat.MaterializeRels(relIDArr)
	if err != nil {
		return nil, err
	}

	nodeList := colarray.NewListBuilder()
	relList := colarray.NewListBuilder()
	var nodeChildIDs []types.NodeId
	var relChildIDs []types.RelationshipId
	cursor := 0
	for row := 0; row < n; row++ {
		ids := perRow[row]
		current := nodeIDAt(startCol, row)
		nodeChildIDs = append(nodeChildIDs, current)
		for _, relID := range ids {
			src, dst := fullRels.RelStarts[cursor], fullRels.RelEnds[cursor]
			cursor++
			next := dst
			if src != current {
				next = src
			}
			relChildIDs = append(relChildIDs, relID)
			nodeChildIDs = append(nodeChildIDs, next)
			current = next
		}
		nodeList.PushLen(len(ids) + 1)
		relList.PushLen(len(ids))
	}

	nodeChild := &colarray.Array{Phys: colarray.PVirtualNode, NodeIDs: nodeChildIDs, Valid: colarray.NewMaskAllValid(len(nodeChildIDs))}
	relChild := &colarray.Array{Phys: colarray.PVirtualRel, RelIDs: relChildIDs, Valid: colarray.NewMaskAllValid(len(relChildIDs))}

	pathNodes := nodeList.Finish(nodeChild)
	pathRels := relList.Finish(relChild)
	return &colarray.Array{Phys: colarray.PVirtualPath, PathNodes: pathNodes, PathRels: pathRels, Valid: colarray.NewMaskAllValid(n)}, nil
}

func decodeRelPath(s string) []types.RelationshipId {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]types.RelationshipId, len(parts))
	for i, p := range parts {
		id, _ := strconv.ParseUint(p, 10, 64)
		out[i] = types.RelationshipId(id)
	}
	return out
}

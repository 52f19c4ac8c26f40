package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrireg/internal/models"
)

// stubTool copies in to out inside its working directory.
type stubTool struct{}

func (stubTool) Kind() Kind            { return "stub" }
func (stubTool) InputPorts() []string  { return []string{"in", "ref"} }
func (stubTool) OutputPorts() []string { return []string{"out"} }

func (stubTool) Invoke(inputs map[string]string, dir string) (Invocation, error) {
	if err := Require(inputs, "in"); err != nil {
		return Invocation{}, err
	}
	out := filepath.Join(dir, filepath.Base(inputs["in"]))
	args := []string{"stub", inputs["in"], out}
	if ref := inputs["ref"]; ref != "" {
		args = append(args, "--ref="+ref)
	}
	return Invocation{Args: args, Outputs: map[string]string{"out": out}}, nil
}

// recordingSink stores every field under /sink/<field>/<index>.
type recordingSink struct{ fields []string }

func (s recordingSink) Kind() Kind            { return KindSink }
func (s recordingSink) InputPorts() []string  { return s.fields }
func (s recordingSink) OutputPorts() []string { return nil }

func (s recordingSink) Destination(field, producer string, index int, src string) string {
	return strings.Join([]string{"/sink", field, producer, filepath.Base(src)}, "/")
}

func chain(t *testing.T) (*Workflow, *Node, *Node, *Node) {
	t.Helper()
	in := NewNode(InputSpec, NewIdentity("files", "ref"))
	step := NewMapNode("step", stubTool{}, "in")
	out := NewNode(OutputSpec, NewIdentity("result"))

	wf := New("chain")
	require.NoError(t, wf.Connect(in, "files", step, "in"))
	require.NoError(t, wf.Connect(in, "ref", step, "ref"))
	require.NoError(t, wf.Connect(step, "out", out, "result"))
	return wf, in, step, out
}

func TestConnectAddsNodes(t *testing.T) {
	wf, _, _, _ := chain(t)

	names := []string{}
	for _, n := range wf.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{InputSpec, "step", OutputSpec}, names)
	assert.Len(t, wf.Connections(), 3)
	assert.Equal(t, []string{"files", "ref"}, wf.InputPorts())
	assert.Equal(t, []string{"result"}, wf.OutputPorts())
}

func TestConnectRejectsUnknownPorts(t *testing.T) {
	wf, in, step, _ := chain(t)

	err := wf.Connect(in, "missing", step, "in")
	assert.ErrorIs(t, err, ErrUnknownPort)

	other := NewNode("other", stubTool{})
	err = wf.Connect(step, "out", other, "nope")
	assert.ErrorIs(t, err, ErrUnknownPort)
}

func TestConnectRejectsFanIn(t *testing.T) {
	wf, in, step, _ := chain(t)
	err := wf.Connect(in, "ref", step, "in")
	assert.ErrorIs(t, err, ErrFanIn)
}

func TestConnectAllowsFanOut(t *testing.T) {
	wf, in, _, _ := chain(t)
	second := NewNode("second", stubTool{})
	require.NoError(t, wf.Connect(in, "files", second, "in"))
	assert.NoError(t, wf.Validate())
}

func TestAddRejectsDuplicateNames(t *testing.T) {
	wf, _, _, _ := chain(t)
	err := wf.Add(NewNode("step", stubTool{}))
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestAddRejectsUndeclaredIterfield(t *testing.T) {
	wf := New("bad")
	err := wf.Add(NewMapNode("m", stubTool{}, "nope"))
	assert.ErrorIs(t, err, ErrUnknownPort)
}

func TestSetRejectsUndeclaredPort(t *testing.T) {
	n := NewNode("n", stubTool{})
	assert.ErrorIs(t, n.Set("nope", models.Scalar("x")), ErrUnknownPort)
	require.NoError(t, n.Set("ref", models.Scalar("x")))
	v, ok := n.Input("ref")
	require.True(t, ok)
	assert.Equal(t, "x", v.String())
}

func TestCycleDetection(t *testing.T) {
	a := NewNode("a", stubTool{})
	b := NewNode("b", stubTool{})
	wf := New("loop")
	require.NoError(t, wf.Connect(a, "out", b, "in"))
	require.NoError(t, wf.Connect(b, "out", a, "in"))

	assert.ErrorIs(t, wf.Validate(), ErrCycle)
	_, err := Resolve(wf, "/work", nil)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestSelfLoop(t *testing.T) {
	a := NewNode("a", stubTool{})
	wf := New("self")
	require.NoError(t, wf.Connect(a, "out", a, "in"))
	assert.ErrorIs(t, wf.Validate(), ErrCycle)
	_, err := DOT(wf)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestTopologicalOrder(t *testing.T) {
	wf, _, _, _ := chain(t)
	order, err := wf.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, InputSpec, order[0].Name)
	assert.Equal(t, "step", order[1].Name)
	assert.Equal(t, OutputSpec, order[2].Name)
}

func TestResolveMapNode(t *testing.T) {
	wf, in, _, _ := chain(t)
	require.NoError(t, in.Set("ref", models.Scalar("/ref.nii.gz")))

	plan, err := Resolve(wf, "/work", Bindings{"files": models.Seq("/d/a.nii.gz", "/d/b.nii.gz")})
	require.NoError(t, err)

	steps := plan.StepsFor("step")
	require.Len(t, steps, 2)
	for i, s := range steps {
		require.NotNil(t, s.Iteration)
		assert.Equal(t, i, *s.Iteration)
		assert.Equal(t, "/ref.nii.gz", s.Inputs["ref"])
	}
	assert.Equal(t, "_step0", steps[0].Name)
	assert.Equal(t, filepath.Join("/work", "chain", "step", "mapflow", "_step1"), steps[1].Dir)
	assert.Equal(t, "/d/b.nii.gz", steps[1].Inputs["in"])

	result := plan.Outputs["result"]
	assert.True(t, result.IsSeq())
	assert.Equal(t, 2, result.Len())
	assert.Equal(t, filepath.Join(steps[0].Dir, "a.nii.gz"), result.At(0))
}

func TestResolveBindingOverridesDefault(t *testing.T) {
	wf, in, _, _ := chain(t)
	require.NoError(t, in.Set("ref", models.Scalar("/default.nii.gz")))

	plan, err := Resolve(wf, "/work", Bindings{
		"files": models.Seq("/d/a.nii.gz"),
		"ref":   models.Scalar("/override.nii.gz"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/override.nii.gz", plan.StepsFor("step")[0].Inputs["ref"])

	v, _ := in.Input("ref")
	assert.Equal(t, "/default.nii.gz", v.String(), "binding must not mutate the graph")
}

func TestResolveUnknownBinding(t *testing.T) {
	wf, _, _, _ := chain(t)
	_, err := Resolve(wf, "/work", Bindings{"nope": models.Scalar("x")})
	assert.ErrorIs(t, err, ErrUnknownPort)
}

func TestResolveMissingIterfield(t *testing.T) {
	wf, _, _, _ := chain(t)
	_, err := Resolve(wf, "/work", nil)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestResolveMismatchedLengths(t *testing.T) {
	in := NewNode(InputSpec, NewIdentity("a", "b"))
	step := NewMapNode("step", stubTool{}, "in", "ref")
	wf := New("pair")
	require.NoError(t, wf.Connect(in, "a", step, "in"))
	require.NoError(t, wf.Connect(in, "b", step, "ref"))

	_, err := Resolve(wf, "/work", Bindings{
		"a": models.Seq("1", "2"),
		"b": models.Seq("1", "2", "3"),
	})
	assert.ErrorIs(t, err, ErrIterLength)
}

func TestResolveSequenceOnPlainPort(t *testing.T) {
	wf, _, _, _ := chain(t)
	_, err := Resolve(wf, "/work", Bindings{
		"files": models.Seq("/d/a.nii.gz", "/d/b.nii.gz"),
		"ref":   models.Seq("/r1", "/r2"),
	})
	assert.ErrorIs(t, err, ErrIterLength)
}

func TestResolveEmptySequenceOnPlainPort(t *testing.T) {
	wf, _, _, _ := chain(t)
	_, err := Resolve(wf, "/work", Bindings{
		"files": models.Seq("/d/a.nii.gz"),
		"ref":   models.Seq(),
	})
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestResolveScalarOnIterfield(t *testing.T) {
	wf, _, _, _ := chain(t)
	plan, err := Resolve(wf, "/work", Bindings{"files": models.Scalar("/d/a.nii.gz")})
	require.NoError(t, err)
	assert.Len(t, plan.StepsFor("step"), 1)
	assert.True(t, plan.Outputs["result"].IsSeq())
}

func TestResolveSink(t *testing.T) {
	wf, _, step, _ := chain(t)
	ds := NewNode("ds", recordingSink{fields: []string{"saved"}})
	require.NoError(t, wf.Connect(step, "out", ds, "saved"))

	plan, err := Resolve(wf, "/work", Bindings{"files": models.Seq("/d/a.nii.gz", "/d/b.nii.gz")})
	require.NoError(t, err)

	sinkSteps := plan.StepsFor("ds")
	require.Len(t, sinkSteps, 1)
	assert.Equal(t, KindSink, sinkSteps[0].Kind)
	require.Len(t, sinkSteps[0].Copies, 2)
	assert.Equal(t, "/sink/saved/step/b.nii.gz", sinkSteps[0].Copies[1].Destination)
}

func TestPlanYAML(t *testing.T) {
	wf, _, _, _ := chain(t)
	plan, err := Resolve(wf, "/work", Bindings{"files": models.Seq("/d/a.nii.gz")})
	require.NoError(t, err)

	data, err := plan.YAML()
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "workflow: chain")
	assert.Contains(t, text, "kind: stub")
	assert.Contains(t, text, "- /d/a.nii.gz")
}

func TestDOT(t *testing.T) {
	wf, _, _, _ := chain(t)
	data, err := DOT(wf)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "digraph chain")
	assert.Contains(t, text, "inputspec -> step")
	assert.Contains(t, text, "files -> in")
	assert.Contains(t, text, "box3d")
}

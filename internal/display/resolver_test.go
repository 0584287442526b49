package display

import "testing"

const dualHeadQuery = `Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384
HDMI-1 connected primary 1920x1080+0+0 (normal left inverted right x axis y axis) 527mm x 296mm
   1920x1080     60.00*+  50.00    59.94
   1280x720      60.00    50.00    59.94
HDMI-2 connected 1920x1080+1920+0 (normal left inverted right x axis y axis) 527mm x 296mm
   1920x1080     60.00*+  50.00
DP-1 disconnected (normal left inverted right x axis y axis)
`

func TestParseTopology_DualHead(t *testing.T) {
	topo := ParseTopology(dualHeadQuery)

	if len(topo.Outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(topo.Outputs))
	}
	if topo.TotalWidth != 3840 || topo.TotalHeight != 1080 {
		t.Errorf("expected 3840x1080 canvas, got %dx%d", topo.TotalWidth, topo.TotalHeight)
	}

	first := topo.Outputs[0]
	if first.Name != "HDMI-1" || !first.Connected {
		t.Errorf("expected HDMI-1 connected first, got %+v", first)
	}
	if first.Width != 1920 || first.Height != 1080 || first.X != 0 || first.Y != 0 {
		t.Errorf("unexpected HDMI-1 geometry: %+v", first)
	}

	second, ok := topo.FindOutput("HDMI-2")
	if !ok {
		t.Fatal("HDMI-2 not found")
	}
	if second.X != 1920 {
		t.Errorf("expected HDMI-2 at x=1920, got %d", second.X)
	}

	dp, ok := topo.FindOutput("DP-1")
	if !ok {
		t.Fatal("DP-1 not found")
	}
	if dp.Connected {
		t.Error("DP-1 should be disconnected")
	}
}

func TestParseTopology_OutputsSortedByX(t *testing.T) {
	// Reversed order in the raw text; parse must sort left-to-right.
	raw := `Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384
HDMI-2 connected 1920x1080+1920+0 (normal) 527mm x 296mm
HDMI-1 connected 1920x1080+0+0 (normal) 527mm x 296mm
`
	topo := ParseTopology(raw)
	if topo.Outputs[0].Name != "HDMI-1" {
		t.Errorf("expected HDMI-1 leftmost, got %s", topo.Outputs[0].Name)
	}
}

func TestParseTopology_CanvasFromBoundingBox(t *testing.T) {
	// No "current WxH" header; total must come from the union of outputs.
	raw := `HDMI-1 connected 1920x1080+0+0 (normal) 527mm x 296mm
HDMI-2 connected 1280x1024+1920+0 (normal) 376mm x 301mm
`
	topo := ParseTopology(raw)
	if topo.TotalWidth != 3200 {
		t.Errorf("expected total width 3200, got %d", topo.TotalWidth)
	}
	if topo.TotalHeight != 1080 {
		t.Errorf("expected total height 1080, got %d", topo.TotalHeight)
	}
}

func TestParseTopology_Empty(t *testing.T) {
	topo := ParseTopology("")
	if len(topo.Outputs) != 0 {
		t.Errorf("expected no outputs, got %d", len(topo.Outputs))
	}
}

func TestDefaultTopology(t *testing.T) {
	topo := DefaultTopology()
	if len(topo.Connected()) != 2 {
		t.Fatalf("default topology should have 2 connected heads")
	}
	if topo.TotalWidth != 3840 || topo.TotalHeight != 1080 {
		t.Errorf("unexpected default canvas %dx%d", topo.TotalWidth, topo.TotalHeight)
	}
	if topo.Outputs[0].X >= topo.Outputs[1].X {
		t.Error("default heads should be side by side, left first")
	}
}

func TestParseTopology_RepeatedCallsIndependent(t *testing.T) {
	a := ParseTopology(dualHeadQuery)
	b := ParseTopology(dualHeadQuery)
	if len(a.Outputs) != len(b.Outputs) || a.TotalWidth != b.TotalWidth {
		t.Error("parsing must be deterministic across calls")
	}
	// Mutating one result must not affect a later parse.
	a.Outputs[0].Name = "mutated"
	c := ParseTopology(dualHeadQuery)
	if c.Outputs[0].Name != "HDMI-1" {
		t.Error("resolver must rebuild outputs on every call")
	}
}

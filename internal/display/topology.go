package display

// Output is a physical display connector and its current state.
// Geometry is in pixels relative to the combined desktop canvas.
type Output struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// Topology is the full set of outputs plus the total canvas size at a
// point in time. Outputs are ordered by ascending x so index 0 is the
// leftmost head.
type Topology struct {
	Outputs     []Output `json:"outputs"`
	TotalWidth  int      `json:"total_width"`
	TotalHeight int      `json:"total_height"`
}

// Connected returns only the outputs that currently have a display attached.
func (t *Topology) Connected() []Output {
	var out []Output
	for _, o := range t.Outputs {
		if o.Connected {
			out = append(out, o)
		}
	}
	return out
}

// FindOutput returns the output with the given connector name.
func (t *Topology) FindOutput(name string) (Output, bool) {
	for _, o := range t.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// boundingBox computes the union rectangle of all connected outputs.
// Used when the query tool doesn't report the total canvas directly.
func (t *Topology) boundingBox() (width, height int) {
	maxX, maxY := 0, 0
	for _, o := range t.Outputs {
		if !o.Connected || o.Width == 0 {
			continue
		}
		if o.X+o.Width > maxX {
			maxX = o.X + o.Width
		}
		if o.Y+o.Height > maxY {
			maxY = o.Y + o.Height
		}
	}
	return maxX, maxY
}

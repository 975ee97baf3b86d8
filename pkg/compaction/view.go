package compaction

import "github.com/bochendong/dragon-continue/pkg/chapter"

// Layer is one resolution level of a view. Layer 0 holds the detail window
// as trivial records. Layer l > 0 windows every older chapter at WindowSize
// = merge factor ^ l.
type Layer struct {
	Index      int                 `json:"layer_index"`
	WindowSize int                 `json:"window_size"`
	Records    []chapter.Compacted `json:"records"`
}

// Coverage returns the chapter span of the layer and false when it is empty.
func (l Layer) Coverage() (chapter.Range, bool) {
	if len(l.Records) == 0 {
		return chapter.Range{}, false
	}
	return chapter.Range{
		Start: l.Records[0].Range.Start,
		End:   l.Records[len(l.Records)-1].Range.End,
	}, true
}

// View is the answer to one compaction request. Layers are ordered finest
// (detail) to coarsest.
type View struct {
	Observation   int     `json:"observation_chapter"`
	MergeFactor   int     `json:"merge_factor"`
	TotalChapters int     `json:"total_chapters"`
	Layers        []Layer `json:"layers"`
}

// Detail returns layer 0.
func (v *View) Detail() Layer {
	return v.Layers[0]
}

// Coarsest returns the last layer, which is the detail layer when nothing
// was compacted.
func (v *View) Coarsest() Layer {
	return v.Layers[len(v.Layers)-1]
}

// CompactedLayers returns the number of layers above the detail layer.
func (v *View) CompactedLayers() int {
	return len(v.Layers) - 1
}

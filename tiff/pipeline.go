package tiff

import (
	"fmt"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// State is the position of a Pipeline in its configure, prepare and
// decode cycle.
type State int

// Pipeline states.
const (
	StateUnconfigured State = iota
	StateConfigured
	StatePrepared
	StateDecoded
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StatePrepared:
		return "prepared"
	case StateDecoded:
		return "decoded"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Pipeline decodes strips and tiles into a destination raster.
//
// A Pipeline handles one strip or tile per Decode call and is not safe for
// concurrent use. Independent pipelines may decode concurrently into
// disjoint regions of the same destination.
type Pipeline struct {
	raw rawDecoder

	state State
	req   DecodeRequest

	rawType RasterType
	simple  bool
	adjust  bool
	srcBits []int // stored width of each mapped band
	dstBits []int // destination width of each mapped band
	tables  [][]int
	cache   bitDepthCache
}

// NewPipeline returns an unconfigured pipeline reading through d.
func NewPipeline(d Decompressor) *Pipeline {
	return &Pipeline{raw: rawDecoder{decompressor: d, pool: globalBufferPool}}
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// Configure validates req and stores a copy of it. The pipeline must be
// prepared again with BeginDecoding before the next Decode. On error the
// previous configuration is kept.
func (p *Pipeline) Configure(req DecodeRequest) error {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return err
	}
	p.req = req
	p.state = StateConfigured
	return nil
}

// BeginDecoding resolves the raw raster type, decides whether samples can
// be decoded straight into the destination and builds the bit-depth
// tables.
func (p *Pipeline) BeginDecoding() error {
	if p.state == StateUnconfigured {
		return fmt.Errorf("%w: pipeline not configured", ErrInvalidConfiguration)
	}
	req := &p.req
	l := req.Layout

	var err error
	if l.Planar {
		p.rawType, err = ResolvePlanarRasterType(l, 0)
	} else {
		p.rawType, err = ResolveRasterType(l)
	}
	if err != nil {
		return err
	}

	bps := l.bands()
	destBits := req.Destination.SampleBits
	p.srcBits = make([]int, len(req.SourceBands))
	p.dstBits = make([]int, len(req.SourceBands))
	p.adjust = false
	for i, sb := range req.SourceBands {
		p.srcBits[i] = bps[sb]
		p.dstBits[i] = destBits[req.DestinationBands[i]]
		if p.srcBits[i] != p.dstBits[i] {
			p.adjust = true
		}
	}
	if l.Photometric == PhotometricSeparated && (bps[0] == 1 || bps[0] == 2 || bps[0] == 4) {
		p.adjust = false
	}
	if p.rawType.DataType == raster.Float || req.Destination.Type == raster.Float {
		p.adjust = false
	}

	p.tables = nil
	if p.adjust {
		key := newBitDepthKey(l.Planar, destBits, req.SourceBands, bps, req.DestinationBands)
		p.tables = p.cache.lookup(key, func() [][]int {
			return BuildBitDepthTables(p.srcBits, p.dstBits)
		})
	}

	p.simple = p.isImageSimple()
	p.state = StatePrepared
	return nil
}

// isImageSimple reports whether the stored pixels can be decoded straight
// into the destination, skipping the copy stage.
func (p *Pipeline) isImageSimple() bool {
	req := &p.req
	reg := &req.Region
	if req.ColorConverter != nil || p.adjust {
		return false
	}
	if reg.SubsampleX != 1 || reg.SubsampleY != 1 {
		return false
	}
	if reg.Src.Size() != reg.Dst.Size() || reg.ActiveSrc != reg.Src {
		return false
	}
	n := req.Layout.SamplesPerPixel
	if len(req.SourceBands) != n || req.Destination.NumBands() != n {
		return false
	}
	if !isIdentity(req.SourceBands) || !isIdentity(req.DestinationBands) {
		return false
	}
	dst := req.Destination
	if !p.rawType.Matches(dst) || !dst.IsContiguous() {
		return false
	}
	if dst.Layout == raster.MultiPixelPacked {
		// A partial last element would be shared with the neighbouring
		// strip or tile.
		if reg.Dst.Dx()*dst.SampleBits[0]%dst.Type.Bits() != 0 && reg.Dst.Max.X != dst.Rect.Max.X {
			return false
		}
		if (reg.Dst.Min.X-dst.Rect.Min.X)*dst.SampleBits[0]%dst.Type.Bits() != 0 {
			return false
		}
	}
	return true
}

// IsImageSimple reports whether the prepared decode writes directly into
// the destination.
func (p *Pipeline) IsImageSimple() bool {
	return p.simple
}

// RawType returns the raster type the stored samples decode to.
func (p *Pipeline) RawType() RasterType {
	return p.rawType
}

// BitDepthTables returns the rescale tables of the prepared decode, one per
// mapped band, or nil when no rescaling is needed.
func (p *Pipeline) BitDepthTables() [][]int {
	return p.tables
}

// Decode decodes the configured strip or tile into the destination. On
// error the destination region is left in an undefined state.
func (p *Pipeline) Decode() error {
	if p.state != StatePrepared && p.state != StateDecoded {
		return ErrNotPrepared
	}
	req := &p.req
	reg := &req.Region

	var raw *raster.Raster
	if p.simple {
		raw = req.Destination.SubImage(reg.Dst)
	} else {
		raw = p.rawType.NewRaster(reg.Src)
	}

	c := Chunk{
		Source:          req.Source,
		Offset:          req.Offset,
		ByteCount:       req.ByteCount,
		Width:           reg.Src.Dx(),
		Height:          reg.Src.Dy(),
		SamplesPerPixel: req.Layout.SamplesPerPixel,
		BitsPerSample:   req.Layout.bands(),
		Photometric:     req.Layout.Photometric,
	}
	if err := p.raw.decode(&c, raw, c.BitsPerSample); err != nil {
		return err
	}

	signed := req.Layout.Format(0) == SampleFormatInt
	if req.ColorConverter != nil {
		convertColors(raw, req.ColorConverter, signed)
	}
	if req.Layout.Photometric == PhotometricWhiteIsZero {
		invertWhiteIsZero(raw, signed)
	}
	if !p.simple {
		subsampleCopy(req.Destination, raw, *reg, req.SourceBands, req.DestinationBands, p.adjust, p.tables, p.srcBits, p.dstBits)
	}
	p.state = StateDecoded
	return nil
}

package scene

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
)

const (
	InterpolationLinear = "LINEAR"
	InterpolationStep   = "STEP"

	immutableTolerance = 1e-6
	timeEpsilon        = 1e-9
)

// Animation is a named set of keyframed tracks.
type Animation struct {
	Name   string
	Length float64
	Tracks []*Track
}

// Track animates one property of one node. Values holds Stride floats per key.
type Track struct {
	Node          string
	Path          string
	Interpolation string
	Times         []float64
	Values        []float32
	Stride        int
}

// Len returns the number of keyframes.
func (t *Track) Len() int {
	return len(t.Times)
}

// Key returns the value of keyframe i.
func (t *Track) Key(i int) []float32 {
	return t.Values[i*t.Stride : (i+1)*t.Stride]
}

func buildAnimation(doc *gltf.Document, idx int, a *gltf.Animation, opts config.AnimationOptions) (*Animation, error) {
	anim := &Animation{Name: a.Name}
	if anim.Name == "" {
		anim.Name = fmt.Sprintf("animation%d", idx)
	}

	for ci, ch := range a.Channels {
		track, err := readTrack(doc, a, ch)
		if err != nil {
			return nil, errors.Wrapf(err, "animation %s channel %d", anim.Name, ci)
		}
		if track == nil {
			continue
		}
		if opts.RemoveImmutableTracks && track.immutable() {
			continue
		}
		anim.Tracks = append(anim.Tracks, track)
	}
	if len(anim.Tracks) == 0 {
		return nil, nil
	}

	start, end := anim.keyRange()
	if opts.Trimming {
		for _, t := range anim.Tracks {
			for i := range t.Times {
				t.Times[i] -= start
			}
		}
		anim.Length = end - start
	} else {
		anim.Length = math.Max(end, 0)
	}

	if opts.FPS > 0 {
		for _, t := range anim.Tracks {
			t.resample(opts.FPS, anim.Length)
		}
	}
	return anim, nil
}

func (a *Animation) keyRange() (float64, float64) {
	start, end := math.Inf(1), math.Inf(-1)
	for _, t := range a.Tracks {
		start = math.Min(start, t.Times[0])
		end = math.Max(end, t.Times[len(t.Times)-1])
	}
	return start, end
}

// readTrack turns one channel into a track. Channels without a target node
// drive nothing in the scene graph and are skipped.
func readTrack(doc *gltf.Document, a *gltf.Animation, ch *gltf.Channel) (*Track, error) {
	if ch.Target.Node == nil || ch.Sampler == nil {
		return nil, nil
	}
	if int(*ch.Sampler) >= len(a.Samplers) {
		return nil, errors.Errorf("sampler index %d out of range", *ch.Sampler)
	}
	sampler := a.Samplers[*ch.Sampler]
	if sampler.Input == nil || sampler.Output == nil {
		return nil, errors.New("sampler without input or output accessor")
	}
	if int(*sampler.Input) >= len(doc.Accessors) || int(*sampler.Output) >= len(doc.Accessors) {
		return nil, errors.New("sampler accessor index out of range")
	}

	in, err := modeler.ReadAccessor(doc, doc.Accessors[*sampler.Input], nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key times")
	}
	times, ok := in.([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected key time data %T", in)
	}
	if len(times) == 0 {
		return nil, nil
	}

	out, err := modeler.ReadAccessor(doc, doc.Accessors[*sampler.Output], nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key values")
	}
	values, err := flatten(out)
	if err != nil {
		return nil, err
	}

	track := &Track{
		Node:          nodeName(doc, int(*ch.Target.Node)),
		Path:          string(ch.Target.Path),
		Interpolation: InterpolationLinear,
		Times:         make([]float64, len(times)),
	}
	for i, t := range times {
		track.Times[i] = float64(t)
	}

	switch sampler.Interpolation {
	case gltf.InterpolationStep:
		track.Interpolation = InterpolationStep
		track.Values, track.Stride, err = splitKeys(values, len(times), 1)
	case gltf.InterpolationCubicSpline:
		// keep the value of each in-tangent/value/out-tangent triple
		var triples []float32
		triples, track.Stride, err = splitKeys(values, len(times), 3)
		if err == nil {
			track.Values = cubicValues(triples, len(times), track.Stride)
		}
	default:
		track.Values, track.Stride, err = splitKeys(values, len(times), 1)
	}
	if err != nil {
		return nil, err
	}
	return track, nil
}

func splitKeys(values []float32, keys, elementsPerKey int) ([]float32, int, error) {
	per := keys * elementsPerKey
	if len(values) == 0 || len(values)%per != 0 {
		return nil, 0, errors.Errorf("%d values do not fit %d keys", len(values), keys)
	}
	return values, len(values) / per, nil
}

func cubicValues(triples []float32, keys, stride int) []float32 {
	values := make([]float32, 0, keys*stride)
	for i := 0; i < keys; i++ {
		base := (3*i + 1) * stride
		values = append(values, triples[base:base+stride]...)
	}
	return values
}

// flatten converts accessor data into a flat float slice. Normalized integer
// components are mapped to [-1, 1] or [0, 1] as glTF defines.
func flatten(data interface{}) ([]float32, error) {
	switch v := data.(type) {
	case []float32:
		return v, nil
	case [][3]float32:
		out := make([]float32, 0, len(v)*3)
		for _, e := range v {
			out = append(out, e[:]...)
		}
		return out, nil
	case [][4]float32:
		out := make([]float32, 0, len(v)*4)
		for _, e := range v {
			out = append(out, e[:]...)
		}
		return out, nil
	case [][4]int8:
		out := make([]float32, 0, len(v)*4)
		for _, e := range v {
			for _, c := range e {
				out = append(out, float32(math.Max(float64(c)/127, -1)))
			}
		}
		return out, nil
	case [][4]int16:
		out := make([]float32, 0, len(v)*4)
		for _, e := range v {
			for _, c := range e {
				out = append(out, float32(math.Max(float64(c)/32767, -1)))
			}
		}
		return out, nil
	case []uint8:
		out := make([]float32, len(v))
		for i, c := range v {
			out[i] = float32(c) / 255
		}
		return out, nil
	case []uint16:
		out := make([]float32, len(v))
		for i, c := range v {
			out[i] = float32(c) / 65535
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported key value data %T", data)
	}
}

func (t *Track) immutable() bool {
	first := t.Key(0)
	for i := 1; i < t.Len(); i++ {
		for j, v := range t.Key(i) {
			if math.Abs(float64(v-first[j])) > immutableTolerance {
				return false
			}
		}
	}
	return true
}

// resample replaces the keys with one key every 1/fps seconds from 0 to
// length, plus a final key at length when it falls between frames.
func (t *Track) resample(fps, length float64) {
	frames := int(math.Floor(length*fps+timeEpsilon)) + 1
	times := make([]float64, 0, frames+1)
	for k := 0; k < frames; k++ {
		times = append(times, float64(k)/fps)
	}
	if last := times[len(times)-1]; length-last > timeEpsilon {
		times = append(times, length)
	}

	values := make([]float32, 0, len(times)*t.Stride)
	for _, at := range times {
		values = append(values, t.sample(at)...)
	}
	t.Times = times
	t.Values = values
}

// sample evaluates the track at time at.
func (t *Track) sample(at float64) []float32 {
	n := t.Len()
	if at <= t.Times[0] {
		return t.Key(0)
	}
	if at >= t.Times[n-1] {
		return t.Key(n - 1)
	}

	// first key strictly after at
	i := sort.Search(n, func(i int) bool { return t.Times[i] > at })
	prev, next := t.Key(i-1), t.Key(i)
	if t.Interpolation == InterpolationStep {
		return prev
	}

	w := float32((at - t.Times[i-1]) / (t.Times[i] - t.Times[i-1]))
	if t.Path == string(gltf.TRSRotation) && t.Stride == 4 {
		return nlerp(prev, next, w)
	}
	out := make([]float32, t.Stride)
	for j := range out {
		out[j] = prev[j] + (next[j]-prev[j])*w
	}
	return out
}

// nlerp interpolates two quaternions along the shorter arc and normalizes
// the result.
func nlerp(a, b []float32, w float32) []float32 {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
	sign := float32(1)
	if dot < 0 {
		sign = -1
	}
	out := make([]float32, 4)
	var norm float64
	for j := range out {
		out[j] = a[j] + (sign*b[j]-a[j])*w
		norm += float64(out[j] * out[j])
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for j := range out {
			out[j] = float32(float64(out[j]) / norm)
		}
	}
	return out
}

package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/nwm-streamflow/internal/storage"
)

const (
	timeVar    = "time"
	featureVar = "feature_id"
)

// ncFile reads an NWM channel_rt or CHRTOUT file through go-native-netcdf.
type ncFile struct {
	obj storage.Object
	nc  api.Group
}

// DecodeNetCDF reads the NetCDF header of obj. Variable data stays remote
// until requested.
func DecodeNetCDF(obj storage.Object) (File, error) {
	nc, err := netcdf.New(obj)
	if err != nil {
		return nil, err
	}
	return &ncFile{obj: obj, nc: nc}, nil
}

func (f *ncFile) Times() ([]time.Time, error) {
	vg, err := f.nc.GetVarGetter(timeVar)
	if err != nil {
		return nil, err
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	vals, err := toFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", timeVar, err)
	}
	units, _ := attrString(vg.Attributes(), "units")
	return decodeCFTimes(vals, units)
}

func (f *ncFile) FeatureLen() (int64, error) {
	vg, err := f.nc.GetVarGetter(featureVar)
	if err != nil {
		return 0, err
	}
	return vg.Len(), nil
}

func (f *ncFile) Features() ([]int64, error) {
	vg, err := f.nc.GetVarGetter(featureVar)
	if err != nil {
		return nil, err
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, err
	}
	return toInts(raw)
}

func (f *ncFile) FeatureAt(i int64) (int64, error) {
	vg, err := f.nc.GetVarGetter(featureVar)
	if err != nil {
		return 0, err
	}
	raw, err := vg.GetSlice(i, i+1)
	if err != nil {
		return 0, err
	}
	ids, err := toInts(raw)
	if err != nil || len(ids) != 1 {
		return 0, fmt.Errorf("%s[%d]: unexpected value %v", featureVar, i, raw)
	}
	return ids[0], nil
}

func (f *ncFile) Value(variable string, i int64) (float64, error) {
	vg, err := f.nc.GetVarGetter(variable)
	if err != nil {
		return 0, err
	}
	if dims := vg.Dimensions(); len(dims) != 1 || dims[0] != featureVar {
		return 0, fmt.Errorf("%s has dimensions %v, want [%s]", variable, dims, featureVar)
	}
	raw, err := vg.GetSlice(i, i+1)
	if err != nil {
		return 0, err
	}
	vals, err := toFloats(raw)
	if err != nil || len(vals) != 1 {
		return 0, fmt.Errorf("%s[%d]: unexpected value %v", variable, i, raw)
	}
	return unpack(vals[0], vg.Attributes()), nil
}

func (f *ncFile) Attr(name string) (any, bool) {
	return f.nc.Attributes().Get(name)
}

func (f *ncFile) Close() error {
	f.nc.Close()
	return f.obj.Close()
}

// unpack applies CF packing conventions: fill and missing values become NaN,
// then scale_factor and add_offset are applied.
func unpack(v float64, attrs api.AttributeMap) float64 {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if fill, ok := attrFloat(attrs, name); ok && v == fill {
			return math.NaN()
		}
	}
	if scale, ok := attrFloat(attrs, "scale_factor"); ok {
		v *= scale
	}
	if offset, ok := attrFloat(attrs, "add_offset"); ok {
		v += offset
	}
	return v
}

func attrFloat(attrs api.AttributeMap, name string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(name)
	if !ok {
		return 0, false
	}
	vals, err := toFloats(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, name string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(name)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return strings.TrimSpace(s), ok
}

func toFloats(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convert(v), nil
	case []int64:
		return convert(v), nil
	case []int32:
		return convert(v), nil
	case []int16:
		return convert(v), nil
	case []int8:
		return convert(v), nil
	case []uint32:
		return convert(v), nil
	case []uint16:
		return convert(v), nil
	case []uint8:
		return convert(v), nil
	case float64:
		return []float64{v}, nil
	case float32:
		return []float64{float64(v)}, nil
	case int64:
		return []float64{float64(v)}, nil
	case int32:
		return []float64{float64(v)}, nil
	case int16:
		return []float64{float64(v)}, nil
	case int8:
		return []float64{float64(v)}, nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

func toInts(raw any) ([]int64, error) {
	switch v := raw.(type) {
	case []int64:
		return v, nil
	case []int32:
		return widen(v), nil
	case []uint32:
		return widen(v), nil
	case []int16:
		return widen(v), nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", raw)
	}
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~float32 | ~float64
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func widen[T ~int16 | ~int32 | ~uint32](in []T) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

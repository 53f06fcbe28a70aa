package dataset

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
)

// NetCDFCodec implements Codec against NetCDF files via the netcdf C
// library bindings.
type NetCDFCodec struct{}

func (NetCDFCodec) Open(path string) (*Dataset, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()

	nvars, err := nc.NVars()
	if err != nil {
		return nil, fmt.Errorf("read netcdf %s: %w", path, err)
	}

	ds := &Dataset{
		Coords: map[string][]float64{},
		Vars:   map[string]*Variable{},
	}
	for i := 0; i < nvars; i++ {
		v := nc.VarN(i)
		name, err := v.Name()
		if err != nil {
			return nil, fmt.Errorf("read netcdf %s: %w", path, err)
		}
		dims, err := v.Dims()
		if err != nil {
			return nil, fmt.Errorf("read netcdf %s var %s: %w", path, name, err)
		}
		dimNames := make([]string, len(dims))
		for j, d := range dims {
			dn, err := d.Name()
			if err != nil {
				return nil, fmt.Errorf("read netcdf %s var %s: %w", path, name, err)
			}
			dimNames[j] = dn
		}
		values, err := readValues(v)
		if err != nil {
			return nil, fmt.Errorf("read netcdf %s var %s: %w", path, name, err)
		}
		if len(dimNames) == 1 && dimNames[0] == name {
			ds.Coords[name] = values
			continue
		}
		ds.Vars[name] = &Variable{Dims: dimNames, Values: values}
	}
	return ds, nil
}

func (NetCDFCodec) Write(ds *Dataset, path string) error {
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("create netcdf %s: %w", path, err)
	}
	defer nc.Close()

	dims := map[string]netcdf.Dim{}
	for name, vals := range ds.Coords {
		dim, err := nc.AddDim(name, uint64(len(vals)))
		if err != nil {
			return fmt.Errorf("write netcdf %s dim %s: %w", path, name, err)
		}
		dims[name] = dim
	}
	for name, vals := range ds.Coords {
		v, err := nc.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dims[name]})
		if err != nil {
			return fmt.Errorf("write netcdf %s coord %s: %w", path, name, err)
		}
		if err := v.WriteFloat64s(vals); err != nil {
			return fmt.Errorf("write netcdf %s coord %s: %w", path, name, err)
		}
	}
	for name, variable := range ds.Vars {
		varDims := make([]netcdf.Dim, len(variable.Dims))
		for i, dn := range variable.Dims {
			dim, ok := dims[dn]
			if !ok {
				return fmt.Errorf("write netcdf %s var %s: undefined dimension %s", path, name, dn)
			}
			varDims[i] = dim
		}
		v, err := nc.AddVar(name, netcdf.DOUBLE, varDims)
		if err != nil {
			return fmt.Errorf("write netcdf %s var %s: %w", path, name, err)
		}
		if err := v.WriteFloat64s(variable.Values); err != nil {
			return fmt.Errorf("write netcdf %s var %s: %w", path, name, err)
		}
	}
	return nil
}

// readValues decodes a variable's payload as float64 regardless of the
// stored numeric type.
func readValues(v netcdf.Var) ([]float64, error) {
	n, err := v.Len()
	if err != nil {
		return nil, err
	}
	t, err := v.Type()
	if err != nil {
		return nil, err
	}
	switch t {
	case netcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := v.ReadFloat32s(buf); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, f := range buf {
			out[i] = float64(f)
		}
		return out, nil
	case netcdf.INT:
		buf := make([]int32, n)
		if err := v.ReadInt32s(buf); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, x := range buf {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported netcdf type %v", t)
	}
}

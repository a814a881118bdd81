package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	m "github.com/Faultbox/texsynth/pkg/math"
)

// ErrNoUVs is returned for meshes whose faces carry no texture coordinates.
var ErrNoUVs = errors.New("mesh has no texture coordinates")

// LoadOBJ reads a Wavefront OBJ file. Polygons are fan-triangulated.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening obj: %w", err)
	}
	defer f.Close()

	ms, err := ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ms, nil
}

// ReadOBJ parses OBJ data. Only v, vt and f records are used; normals,
// groups and materials are ignored.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	ms := &Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			vals, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			ms.Verts = append(ms.Verts, m.Vec3{X: vals[0], Y: vals[1], Z: vals[2]})
		case "vt":
			vals, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			ms.UVs = append(ms.UVs, m.Vec2{X: vals[0], Y: vals[1]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", lineNo)
			}
			var vs, ts []int
			for _, ref := range fields[1:] {
				vi, ti, err := parseFaceRef(ref, len(ms.Verts), len(ms.UVs))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				if ti < 0 {
					return nil, fmt.Errorf("line %d: %w", lineNo, ErrNoUVs)
				}
				vs = append(vs, vi)
				ts = append(ts, ti)
			}
			for i := 1; i+1 < len(vs); i++ {
				ms.Faces = append(ms.Faces, [3]int{vs[0], vs[i], vs[i+1]})
				ms.FaceUVs = append(ms.FaceUVs, [3]int{ts[0], ts[i], ts[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ms.Faces) == 0 {
		return nil, errors.New("no faces")
	}
	return ms, nil
}

// SaveOBJ writes the mesh with a material library that maps the texture
// image onto it. The .mtl file is written next to the .obj file.
func SaveOBJ(ms *Mesh, path, textureFile string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mtlName := base + ".mtl"

	mtl := fmt.Sprintf("newmtl material_0\nKa 1 1 1\nKd 1 1 1\nKs 0 0 0\nmap_Kd %s\n", textureFile)
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), mtlName), []byte(mtl), 0644); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "mtllib %s\n", mtlName)
	for _, v := range ms.Verts {
		fmt.Fprintf(w, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, uv := range ms.UVs {
		fmt.Fprintf(w, "vt %g %g\n", uv.X, uv.Y)
	}
	fmt.Fprintln(w, "usemtl material_0")
	for i, face := range ms.Faces {
		t := ms.FaceUVs[i]
		fmt.Fprintf(w, "f %d/%d %d/%d %d/%d\n",
			face[0]+1, t[0]+1, face[1]+1, t[1]+1, face[2]+1, t[2]+1)
	}
	return w.Flush()
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseFaceRef resolves "v", "v/vt", "v//vn" or "v/vt/vn" to zero-based
// indices. The UV index is -1 when absent.
func parseFaceRef(ref string, numV, numT int) (int, int, error) {
	parts := strings.Split(ref, "/")
	vi, err := resolveIndex(parts[0], numV)
	if err != nil {
		return 0, 0, err
	}
	ti := -1
	if len(parts) > 1 && parts[1] != "" {
		ti, err = resolveIndex(parts[1], numT)
		if err != nil {
			return 0, 0, err
		}
	}
	return vi, ti, nil
}

func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range (%d entries)", s, n)
	}
	return i, nil
}

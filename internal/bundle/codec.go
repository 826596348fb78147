package bundle

import (
	"archive/zip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	engerrors "github.com/memengine/memengine/internal/errors"
)

func writeFloat32LE(w io.Writer, vec []float32) error {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readFloat32LE(data []byte, dim int) [][]float32 {
	if dim == 0 {
		return nil
	}
	count := len(data) / (4 * dim)
	vectors := make([][]float32, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			offset := (i*dim + j) * 4
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset : offset+4]))
		}
		vectors[i] = vec
	}
	return vectors
}

// zipDirectory packs dir's files (flat, no subdirectories expected) into a
// .zip at path, fsyncing before returning so the archive is durable.
func zipDirectory(dir, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return engerrors.InternalError("failed to create bundle zip", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return engerrors.InternalError("failed to list bundle staging directory", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := addZipEntry(zw, dir, e.Name()); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return engerrors.InternalError("failed to finalize bundle zip", err)
	}
	return f.Sync()
}

func addZipEntry(zw *zip.Writer, dir, name string) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return engerrors.InternalError("failed to read "+name+" for zip", err)
	}
	w, err := zw.Create(name)
	if err != nil {
		return engerrors.InternalError("failed to add "+name+" to zip", err)
	}
	_, err = w.Write(data)
	return err
}

// unzipToDir extracts a bundle .zip into dir, which must not already exist.
func unzipToDir(zipPath, dir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return engerrors.New(engerrors.ErrCodeNotFound, "failed to open bundle zip", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engerrors.InternalError("failed to create import staging directory", err)
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return engerrors.InternalError("failed to read "+f.Name+" from zip", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return engerrors.InternalError("failed to read "+f.Name+" from zip", err)
		}
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(f.Name)), data, 0o644); err != nil {
			return engerrors.InternalError("failed to write "+f.Name, err)
		}
	}
	return nil
}

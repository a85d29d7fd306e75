package assets

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/vergegfx/verge/engine/core"
)

// ShaderBinary is a pre-compiled SPIR-V program. The substrate treats the
// bytes as opaque; Bindings is the descriptor layout the shader collaborator
// declares alongside it.
type ShaderBinary struct {
	Name     string
	Code     []byte
	Bindings []DescriptorBinding
}

type DescriptorKind int

const (
	DESCRIPTOR_KIND_UNIFORM_BUFFER DescriptorKind = iota
	DESCRIPTOR_KIND_STORAGE_BUFFER
	DESCRIPTOR_KIND_STORAGE_IMAGE
	DESCRIPTOR_KIND_COMBINED_SAMPLER
	DESCRIPTOR_KIND_ACCELERATION_STRUCTURE
)

// DescriptorBinding names one set/binding slot and the resource kind bound
// there. Fixed configuration, never computed by the core.
type DescriptorBinding struct {
	Set     uint32
	Binding uint32
	Kind    DescriptorKind
	Count   uint32
}

// LoadShader reads a SPIR-V blob from disk. SPIR-V words are 4 bytes, so a
// valid blob length is a multiple of 4 starting with the 0x07230203 magic.
func LoadShader(path string, bindings []DescriptorBinding) (*ShaderBinary, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %q", path)
	}
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, errors.Newf("shader %q is not valid SPIR-V (%d bytes)", path, len(code))
	}
	if code[0] != 0x03 || code[1] != 0x02 || code[2] != 0x23 || code[3] != 0x07 {
		return nil, errors.Newf("shader %q has no SPIR-V magic", path)
	}
	return &ShaderBinary{
		Name:     filepath.Base(path),
		Code:     code,
		Bindings: bindings,
	}, nil
}

// Watcher reports shader blobs rewritten on disk so examples can flag a
// pipeline rebuild on the next frame boundary.
type Watcher struct {
	fsnotify *fsnotify.Watcher
	Changed  chan string
	done     chan struct{}
}

func NewWatcher(dir string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating shader watcher")
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "watching %q", dir)
	}

	w := &Watcher{
		fsnotify: fsWatch,
		Changed:  make(chan string, 8),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Write) && filepath.Ext(event.Name) == ".spv" {
				select {
				case w.Changed <- event.Name:
				default:
				}
			}
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher: %s", err)
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsnotify.Close()
}

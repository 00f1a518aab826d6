package volume_test

import (
	"bytes"
	"testing"

	"github.com/libfif/go-fif/backend/memory"
	"github.com/libfif/go-fif/volume"
)

func TestTraceRecordAndReplay(t *testing.T) {
	volBackend := memory.New()
	traceBackend := memory.New()

	recorder, err := volume.NewRecorder(traceBackend)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	opts := volume.DefaultMountOptions()
	opts.Recorder = recorder

	m, err := volume.CreateVolume(volBackend, volume.DefaultVolumeOptions(), opts)
	if err != nil {
		t.Fatalf("CreateVolume: %v", err)
	}
	if err := m.Mkdir("/d"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := m.PutFileContents("/d/a.txt", []byte("replayed"), len("replayed")); err != nil {
		t.Fatalf("PutFileContents: %v", err)
	}
	if err := m.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	targetBackend := memory.New()
	target, err := volume.CreateVolume(targetBackend, volume.DefaultVolumeOptions(), volume.DefaultMountOptions())
	if err != nil {
		t.Fatalf("CreateVolume (target): %v", err)
	}

	replayer, err := volume.NewReplayer(target, traceBackend)
	if err != nil {
		t.Fatalf("NewReplayer: %v", err)
	}
	if err := replayer.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := make([]byte, 32)
	n, err := target.GetFileContents("/d/a.txt", got, len(got))
	if err != nil {
		t.Fatalf("GetFileContents on replayed target: %v", err)
	}
	if !bytes.Equal(got[:n], []byte("replayed")) {
		t.Fatalf("replayed contents mismatch: got %q", got[:n])
	}
}

// Command fifreplay drives a volume through a previously recorded trace
// log, either against a freshly created volume or a mounted existing one.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/libfif/go-fif/backend/file"
	"github.com/libfif/go-fif/volume"
)

func main() {
	var (
		volumePath  = flag.String("v", "", "path to the volume file")
		tracePath   = flag.String("t", "", "path to the trace file")
		create      = flag.Bool("c", false, "create the volume instead of mounting it")
		blockSize   = flag.Uint("b", 1024, "block size when creating a volume")
		compAlg     = flag.Uint("calg", uint(volume.AlgorithmNone), "compression algorithm for files created during replay")
		compLevel   = flag.Uint("clevel", 0, "compression level for files created during replay")
	)
	flag.Parse()

	log := logrus.StandardLogger()

	if *volumePath == "" || *tracePath == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -v volume -t tracefile [-c] [-b blocksize] [-calg alg] [-clevel level]\n", os.Args[0])
		os.Exit(1)
	}

	traceBackend, err := file.OpenLocal(*tracePath, true)
	if err != nil {
		log.WithError(err).Fatalf("failed to open tracefile %q", *tracePath)
	}
	defer traceBackend.Close()

	mountOpts := volume.DefaultMountOptions()
	mountOpts.Logger = log
	mountOpts.NewFileCompressionAlgorithm = volume.Algorithm(*compAlg)
	mountOpts.NewFileCompressionLevel = uint32(*compLevel)

	var (
		volBackend *file.LocalBackend
		mount      *volume.Mount
	)

	if *create {
		log.Infof("creating volume %q", *volumePath)
		volBackend, err = file.CreateLocal(*volumePath, int64(*blockSize))
		if err != nil {
			log.WithError(err).Fatalf("failed to create volumefile %q", *volumePath)
		}
		volOpts := volume.DefaultVolumeOptions()
		volOpts.BlockSize = uint32(*blockSize)
		mount, err = volume.CreateVolume(volBackend, volOpts, mountOpts)
	} else {
		log.Infof("mounting volume %q", *volumePath)
		volBackend, err = file.OpenLocal(*volumePath, false)
		if err != nil {
			log.WithError(err).Fatalf("failed to open volumefile %q", *volumePath)
		}
		mount, err = volume.MountVolume(volBackend, mountOpts)
	}
	if err != nil {
		volBackend.Close()
		log.WithError(err).Fatalf("failed to prepare volume %q", *volumePath)
	}

	log.Info("replaying trace...")
	replayer, err := volume.NewReplayer(mount, traceBackend)
	if err != nil {
		log.WithError(err).Fatal("failed to open trace")
	}
	if err := replayer.Run(); err != nil {
		log.WithError(err).Fatal("failed to replay trace")
	}
	replayer.Close()

	log.Info("unmounting volume...")
	if err := mount.Unmount(); err != nil {
		log.WithError(err).Fatal("failed to unmount volume")
	}
	volBackend.Close()
}

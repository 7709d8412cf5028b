package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/kevmo314/go-uvcmanager/pkg/capture"
	"github.com/kevmo314/go-uvcmanager/pkg/device"
	"github.com/kevmo314/go-uvcmanager/pkg/hotplug"
)

func main() {
	path := flag.String("path", "/dev/bus/usb/001/046", "path to the usb device")
	flag.Parse()

	log.Printf("Opening USB device at %s", *path)

	token, err := hotplug.OpenDevice(device.Device{Path: *path})
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer token.Close()

	cam := capture.NewUVCCamera(slog.Default())
	if err := cam.Open(token); err != nil {
		log.Fatalf("Failed to open camera: %v", err)
	}
	defer cam.Destroy()

	sizes := cam.SupportedSizes()
	if len(sizes) == 0 {
		fmt.Println("No MJPEG or YUYV formats found")
		return
	}

	fmt.Println("=== Supported sizes ===")
	var last capture.FrameFormat = -1
	for _, s := range sizes {
		if s.Format != last {
			fmt.Printf("\n%s:\n", s.Format)
			last = s.Format
		}
		if s.Interval > 0 {
			fmt.Printf("  %dx%d @ %.2f fps\n", s.Width, s.Height, 1e9/float64(s.Interval.Nanoseconds()))
		} else {
			fmt.Printf("  %dx%d\n", s.Width, s.Height)
		}
	}

	for _, ff := range []capture.FrameFormat{capture.FrameFormatMJPEG, capture.FrameFormatYUYV} {
		if err := cam.SetPreviewSize(640, 480, ff); err != nil {
			fmt.Printf("\n640x480 %s: %v\n", ff, err)
			continue
		}
		fmt.Printf("\n640x480 %s: negotiable\n", ff)
		break
	}
}

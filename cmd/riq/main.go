// Command riq is a console for RadarIQ-M1 sensors: discover attached
// sensors, query and change their settings, and capture frames to the
// terminal or a SQLite database.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/radariq"
	"github.com/banshee-data/radariq/internal/capturedb"
	"github.com/banshee-data/radariq/internal/discovery"
	"github.com/banshee-data/radariq/internal/version"
)

var (
	list        = flag.Bool("list", false, "List attached sensors and exit")
	showVersion = flag.Bool("version", false, "Print the riq version and exit")
	port        = flag.String("port", "", "Serial port to use (default: first discovered sensor)")
	info        = flag.Bool("info", false, "Print sensor version and serial number")
	mode        = flag.String("mode", "", "Set capture mode: point_cloud or object_tracking")
	rate        = flag.Int("rate", -1, "Set frame rate in fps, 0 to 20")
	save        = flag.Bool("save", false, "Persist settings to the sensor after applying them")
	frames      = flag.Int("frames", -1, "Capture this many frames (0 = until interrupted)")
	mirror      = flag.Bool("mirror", false, "Mirror data in the X dimension")
	distUnits   = flag.String("units", "m", "Distance units: mm, cm, m, km, in, ft, mi")
	speedUnits  = flag.String("speed-units", "m/s", "Speed units: mm/s, cm/s, m/s, km/h, in/s, ft/s, mi/h")
	record      = flag.String("record", "", "Record captured frames into this SQLite database")
	waitTimeout = flag.Duration("wait", time.Second, "Per-frame wait timeout while capturing")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("riq %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *list {
		listSensors()
		return
	}

	portName := *port
	if portName == "" {
		found, err := discovery.FirstPort()
		if err != nil {
			log.Fatalf("no sensor found: %v (use -port to select one explicitly)", err)
		}
		portName = found.Name
		log.Printf("using discovered sensor on %s", portName)
	}

	sensor, err := radariq.Open(portName,
		radariq.WithUnits(*distUnits, *speedUnits, ""),
		radariq.WithMirror(*mirror),
		radariq.WithStatusCallback(func(s radariq.ConnectionState) {
			log.Printf("connection %s", s)
		}),
	)
	if err != nil {
		log.Fatalf("failed to open sensor on %s: %v", portName, err)
	}
	defer sensor.Close()

	if *info {
		printInfo(sensor)
	}

	applySettings(sensor)

	if *frames >= 0 {
		capture(sensor, portName)
	}
}

func listSensors() {
	ports, err := discovery.Ports()
	if err != nil {
		log.Fatalf("failed to enumerate ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("no sensors found")
		return
	}
	for _, p := range ports {
		fmt.Printf("%s\tserial %s\n", p.Name, p.SerialNumber)
	}
}

func printInfo(sensor *radariq.Sensor) {
	v, err := sensor.Version()
	if err != nil {
		log.Fatalf("failed to read version: %v", err)
	}
	serial, err := sensor.SerialNumber()
	if err != nil {
		log.Fatalf("failed to read serial number: %v", err)
	}
	fmt.Printf("firmware %s  hardware %s  serial %s\n", v.Firmware, v.Hardware, serial)
}

func applySettings(sensor *radariq.Sensor) {
	changed := false

	switch *mode {
	case "":
	case "point_cloud":
		if err := sensor.SetMode(radariq.ModePointCloud); err != nil {
			log.Fatalf("failed to set mode: %v", err)
		}
		changed = true
	case "object_tracking":
		if err := sensor.SetMode(radariq.ModeObjectTracking); err != nil {
			log.Fatalf("failed to set mode: %v", err)
		}
		changed = true
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if *rate >= 0 {
		if err := sensor.SetFrameRate(*rate); err != nil {
			log.Fatalf("failed to set frame rate: %v", err)
		}
		changed = true
	}

	if *save {
		if !changed {
			log.Printf("-save given with no settings changed; saving current state")
		}
		if err := sensor.Save(); err != nil {
			log.Fatalf("failed to save settings: %v", err)
		}
	}
}

func capture(sensor *radariq.Sensor, portName string) {
	var db *capturedb.CaptureDB
	var sessionID int64
	if *record != "" {
		var err error
		db, err = capturedb.Open(*record)
		if err != nil {
			log.Fatalf("failed to open capture database: %v", err)
		}
		defer db.Close()

		sessionID, err = db.StartSession(portName, *mode, *distUnits, *speedUnits, "")
		if err != nil {
			log.Fatalf("failed to start capture session: %v", err)
		}
		defer db.EndSession(sessionID)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	if err := sensor.Start(*frames); err != nil {
		log.Fatalf("failed to start capture: %v", err)
	}
	log.Printf("capturing (interrupt to stop)")

	captured := 0
	for {
		select {
		case <-interrupt:
			log.Printf("interrupted, stopping capture")
			if err := sensor.Stop(); err != nil {
				log.Printf("failed to stop capture: %v", err)
			}
		default:
		}

		frame, err := sensor.NextFrame(*waitTimeout)
		if errors.Is(err, radariq.ErrCaptureStopped) {
			break
		}
		if err != nil {
			log.Fatalf("capture failed: %v", err)
		}
		if frame == nil {
			continue
		}

		captured++
		log.Printf("frame %s: %d points, %d objects", frame.ID, len(frame.Points), len(frame.Objects))
		if db != nil {
			if _, err := db.RecordFrame(sessionID, frame); err != nil {
				log.Printf("failed to record frame: %v", err)
			}
		}
	}

	stats := sensor.Statistics()
	if db != nil {
		if err := db.RecordStatistics(sessionID, stats.Statistics); err != nil {
			log.Printf("failed to record statistics: %v", err)
		}
	}
	log.Printf("captured %d frames (%d dropped, %d subframes discarded)",
		captured, stats.FramesDropped, stats.SubframesDiscarded)
	if stats.Core != nil {
		log.Printf("sensor temperature %d°C", stats.Core.TemperatureSensor0)
	}
}

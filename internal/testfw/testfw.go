// Package testfw holds small sketches used by tests. A test binary calls
// Main from TestMain, so it can be attached to a board and run as firmware.
package testfw

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/buckleypaul/vboard/firmware"
)

// Env selects the sketch the test binary runs.
const Env = "VBOARD_TEST_FIRMWARE"

// Main runs the selected sketch and exits, or runs the tests.
func Main(m *testing.M) {
	if name := os.Getenv(Env); name != "" {
		os.Exit(Run(name))
	}
	os.Exit(m.Run())
}

// Select returns the environment entry that selects sketch name.
func Select(name string) string {
	return Env + "=" + name
}

// Artifact returns the running test binary.
func Artifact(t testing.TB) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	return exe
}

// Run executes sketch name and returns its exit code.
//
//	invert   pin 2 follows the inverse of pin 0
//	echo     uart 0 sends back what it receives
//	counter  analog pin 1 counts up
//	mirror   frame buffer 1 shows what frame buffer 0 receives
//	sd       writes hello.txt to the card on pin 10, then exits
//	exit:N   prints "bye" and exits with N
func Run(name string) int {
	if code, ok := strings.CutPrefix(name, "exit:"); ok {
		n, _ := strconv.Atoi(code)
		fmt.Println("bye")
		return n
	}

	b, err := firmware.Connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer b.Close()

	switch name {
	case "invert":
		return loop(func() error {
			v, err := b.DigitalRead(0)
			if err != nil {
				return err
			}
			return b.DigitalWrite(2, !v)
		})
	case "echo":
		var serials []*firmware.Serial
		for i := range b.Manifest().Uarts {
			s, err := b.Serial(i)
			if err != nil {
				return 1
			}
			serials = append(serials, s)
		}
		buf := make([]byte, 64)
		return loop(func() error {
			for _, s := range serials {
				n, err := s.Read(buf)
				if err != nil {
					return err
				}
				if n == 0 {
					continue
				}
				if _, err := s.Write(buf[:n]); err != nil {
					return err
				}
			}
			return nil
		})
	case "counter":
		var n uint16
		return loop(func() error {
			n++
			return b.AnalogWrite(1, n)
		})
	case "mirror":
		cam, err := b.FrameBuffer(0)
		if err != nil {
			return 1
		}
		display, err := b.FrameBuffer(1)
		if err != nil {
			return 1
		}
		if err := display.Begin(firmware.Geometry{Width: 2, Height: 1, Freq: 30, VFlip: true}); err != nil {
			return 1
		}
		return loop(func() error {
			frame, err := cam.Read()
			if err != nil || len(frame) == 0 {
				return err
			}
			return display.Write(frame)
		})
	case "sd":
		card, err := b.SD(10)
		if err != nil {
			return 1
		}
		f, err := card.Create("hello.txt")
		if err != nil {
			return 1
		}
		fmt.Fprint(f, "hello from the card")
		if err := f.Close(); err != nil {
			return 1
		}
		return 0
	}
	fmt.Fprintln(os.Stderr, "unknown sketch", name)
	return 1
}

// loop runs step until it fails, which happens once the host goes away.
func loop(step func() error) int {
	for {
		if err := step(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		time.Sleep(time.Millisecond)
	}
}

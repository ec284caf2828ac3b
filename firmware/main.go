//go:build tinygo

//go:generate tinygo flash -target=nrf52840-mdk

package main

func main() {
	println("Hello World!", BOARD_TARGET)

	if !STREAM_SWEEPS {
		return
	}
	streamSweeps()
}

// Package reader turns a keyboard-emulating RFID reader into a stream of
// card ids.
//
// Scanner decodes raw evdev input_event records, Device adds the exclusive
// EVIOCGRAB hold on a real /dev/input node, and WaitForDevice blocks until an
// unplugged reader comes back.
package reader

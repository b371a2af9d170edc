package document

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Load parses a standard MIDI file into a Document. All messages are kept
// verbatim, delta times become absolute ticks, and each channel event
// remembers whether its status byte was omitted in the source, so that Save
// on an unmodified document reproduces the input bytes exactly.
func Load(data []byte) (*Document, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte("MThd")) {
		return nil, &UnsupportedFormatError{Reason: "missing MThd header"}
	}
	if len(data) < 14 {
		return nil, &CorruptFileError{Err: fmt.Errorf("truncated header")}
	}
	if hdrLen := binary.BigEndian.Uint32(data[4:8]); hdrLen != 6 {
		return nil, &UnsupportedFormatError{Reason: fmt.Sprintf("header length %d", hdrLen)}
	}
	format := binary.BigEndian.Uint16(data[8:10])
	if format > 2 {
		return nil, &UnsupportedFormatError{Reason: fmt.Sprintf("SMF format %d", format)}
	}
	numTracks := int(binary.BigEndian.Uint16(data[10:12]))
	division := binary.BigEndian.Uint16(data[12:14])
	if division&0x8000 != 0 {
		return nil, &UnsupportedFormatError{Reason: "SMPTE time division"}
	}
	doc := &Document{
		Format:     format,
		TimeFormat: smf.MetricTicks(division),
		Tracks:     make([]Track, 0, numTracks),
	}
	rest := data[14:]
	for i := 0; i < numTracks; i++ {
		if len(rest) < 8 {
			return nil, &CorruptFileError{Err: fmt.Errorf("expected %d tracks, found %d", numTracks, i)}
		}
		if id := string(rest[:4]); id != "MTrk" {
			return nil, &UnsupportedFormatError{Reason: fmt.Sprintf("chunk type %q", id)}
		}
		length := binary.BigEndian.Uint32(rest[4:8])
		if uint32(len(rest)-8) < length {
			return nil, &CorruptFileError{Err: fmt.Errorf("track %d: chunk length %d exceeds file", i, length)}
		}
		track, err := parseTrack(rest[8 : 8+length])
		if err != nil {
			return nil, &CorruptFileError{Err: fmt.Errorf("track %d: %v", i, err)}
		}
		doc.Tracks = append(doc.Tracks, track)
		rest = rest[8+length:]
	}
	if len(rest) != 0 {
		return nil, &CorruptFileError{Err: fmt.Errorf("%d trailing bytes after last track", len(rest))}
	}
	return doc, nil
}

// parseTrack decodes one MTrk chunk body into absolute-tick events.
// Running status is tracked across meta and sysex events: strict writers
// reset it there, but files in the wild rely on it anyway.
func parseTrack(data []byte) (Track, error) {
	var track Track
	var tick int64
	var running byte
	for len(data) > 0 {
		delta, n, err := readVarLen(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		tick += int64(delta)
		if len(data) == 0 {
			return nil, fmt.Errorf("missing event after delta at tick %d", tick)
		}
		status := data[0]
		switch {
		case status == 0xFF:
			if len(data) < 3 {
				return nil, fmt.Errorf("truncated meta event at tick %d", tick)
			}
			length, n, err := readVarLen(data[2:])
			if err != nil {
				return nil, err
			}
			end := 2 + n + int(length)
			if len(data) < end {
				return nil, fmt.Errorf("truncated meta event at tick %d", tick)
			}
			track = append(track, Event{Tick: tick, Message: smf.Message(data[:end])})
			data = data[end:]
		case status == 0xF0 || status == 0xF7:
			length, n, err := readVarLen(data[1:])
			if err != nil {
				return nil, err
			}
			end := 1 + n + int(length)
			if len(data) < end {
				return nil, fmt.Errorf("truncated sysex event at tick %d", tick)
			}
			track = append(track, Event{Tick: tick, Message: smf.Message(data[:end])})
			data = data[end:]
		case status >= 0x80 && status < 0xF0:
			n := 1 + channelDataBytes(status)
			if len(data) < n {
				return nil, fmt.Errorf("truncated channel event at tick %d", tick)
			}
			track = append(track, Event{Tick: tick, Message: smf.Message(data[:n])})
			running = status
			data = data[n:]
		case status < 0x80:
			if running == 0 {
				return nil, fmt.Errorf("running status with no prior status byte at tick %d", tick)
			}
			n := channelDataBytes(running)
			if len(data) < n {
				return nil, fmt.Errorf("truncated channel event at tick %d", tick)
			}
			msg := make([]byte, 0, n+1)
			msg = append(msg, running)
			msg = append(msg, data[:n]...)
			track = append(track, Event{Tick: tick, Message: smf.Message(msg), noStatus: true})
			data = data[n:]
		default:
			return nil, fmt.Errorf("unexpected status byte 0x%02X at tick %d", status, tick)
		}
	}
	return track, nil
}

// channelDataBytes is the data byte count for a channel voice status.
func channelDataBytes(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

// Save serializes the document back to standard MIDI file bytes,
// re-encoding absolute ticks as delta times. The header format and each
// event's status byte encoding are written back as loaded; events added
// after loading always carry a full status byte.
func (d *Document) Save() ([]byte, error) {
	format := d.Format
	// Format 0 holds a single track; multi-track documents built in
	// memory get format 1.
	if format == 0 && len(d.Tracks) > 1 {
		format = 1
	}
	var buf bytes.Buffer
	buf.WriteString("MThd")
	binary.Write(&buf, binary.BigEndian, uint32(6))
	binary.Write(&buf, binary.BigEndian, format)
	binary.Write(&buf, binary.BigEndian, uint16(len(d.Tracks)))
	binary.Write(&buf, binary.BigEndian, uint16(d.Resolution()))
	for i, track := range d.Tracks {
		body, err := encodeTrack(track)
		if err != nil {
			return nil, fmt.Errorf("track %d %v", i, err)
		}
		buf.WriteString("MTrk")
		binary.Write(&buf, binary.BigEndian, uint32(len(body)))
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

func encodeTrack(track Track) ([]byte, error) {
	var buf bytes.Buffer
	var trackTime int64
	var running byte
	for _, ev := range track {
		if ev.Tick < trackTime {
			return nil, fmt.Errorf("not in tick order at tick %d", ev.Tick)
		}
		b := []byte(ev.Message)
		if len(b) == 0 {
			return nil, fmt.Errorf("has an empty message at tick %d", ev.Tick)
		}
		writeVarLen(&buf, uint32(ev.Tick-trackTime))
		trackTime = ev.Tick
		status := b[0]
		// Omit the status byte only where the source did and the running
		// status still matches; edits in between fall back to full form.
		if status < 0xF0 && ev.noStatus && status == running {
			buf.Write(b[1:])
		} else {
			buf.Write(b)
		}
		if status < 0xF0 {
			running = status
		}
	}
	if n := len(track); n == 0 || !track[n-1].Message.Is(smf.MetaEndOfTrackMsg) {
		writeVarLen(&buf, 0)
		buf.Write([]byte{0xFF, 0x2F, 0x00})
	}
	return buf.Bytes(), nil
}

// readVarLen decodes one variable-length quantity, returning the value and
// the number of bytes consumed.
func readVarLen(data []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < len(data) && i < 4; i++ {
		c := data[i]
		v = v<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("unterminated variable-length quantity")
}

func writeVarLen(buf *bytes.Buffer, v uint32) {
	var enc [5]byte
	i := len(enc) - 1
	enc[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		enc[i] = byte(v&0x7F) | 0x80
	}
	buf.Write(enc[i:])
}

package render

// H264Depacketizer extracts NAL units from RTP H264 payloads. Each track
// gets its own instance so FU-A reassembly state is never shared.
type H264Depacketizer struct {
	fuaBuf  []byte
	lastSeq uint16
	started bool
}

// NewH264Depacketizer creates a depacketizer with an empty reassembly buffer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize extracts NAL units from one RTP payload. Single NAL, STAP-A
// and FU-A packets are handled; a sequence gap discards any partial FU-A.
func (d *H264Depacketizer) Depacketize(seq uint16, payload []byte) [][]byte {
	if d.started && seq != d.lastSeq+1 {
		d.fuaBuf = nil
	}
	d.started = true
	d.lastSeq = seq

	if len(payload) < 1 {
		return nil
	}

	naluType := payload[0] & 0x1f

	switch {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}

	case naluType == 24:
		return d.depacketizeSTAPA(payload)

	case naluType == 28:
		return d.depacketizeFUA(payload)

	default:
		return nil
	}
}

func (d *H264Depacketizer) depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1 // skip STAP-A header byte

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

func (d *H264Depacketizer) depacketizeFUA(payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0 // F + NRI bits from FU indicator
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	switch {
	case start:
		// Reconstruct NAL header: F+NRI from FU indicator + type from FU header
		d.fuaBuf = append([]byte{fnri | naluType}, payload[2:]...)
	case d.fuaBuf == nil:
		// continuation without a start: the chain was dropped
		return nil
	default:
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	}

	if end {
		nalu := d.fuaBuf
		d.fuaBuf = nil
		return [][]byte{nalu}
	}

	return nil
}

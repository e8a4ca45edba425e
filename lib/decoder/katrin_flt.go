// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

// KatrinFLTEnergy decodes energy-mode records of the KATRIN FLT (first
// level trigger) card. Record layout after the header and the
// crate/card word:
//
//	record[2]  seconds
//	record[3]  sub-seconds
//	record[4]  channel (bits 31..24), channel map (bits 21..0)
//	record[5]  page number (bits 24..16), event ID (bits 9..0)
//	record[6]  energy
//	record[7]  reset seconds
//	record[8]  reset sub-seconds
type KatrinFLTEnergy struct {
	Basic
}

// KatrinFLTChannels is the number of channels on one FLT card.
const KatrinFLTChannels = 22

// KatrinFLTIdentity is the run-header key of the FLT energy format.
const KatrinFLTIdentity = "ORKatrinFLTModel:KatrinFLT"

var katrinFLTParameters = [...]string{"Channel", "Sec", "SubSec", "EventID", "PageNumber", "Energy"}

// Identity implements Decoder.
func (KatrinFLTEnergy) Identity() string { return KatrinFLTIdentity }

// ChannelOf returns the FLT channel that produced the event.
func (KatrinFLTEnergy) ChannelOf(record []uint32) uint32 {
	return (word(record, 4) & 0xFF000000) >> 24
}

// SecondsOf returns the event time in whole seconds.
func (KatrinFLTEnergy) SecondsOf(record []uint32) uint32 { return word(record, 2) }

// SubSecondsOf returns the sub-second part of the event time.
func (KatrinFLTEnergy) SubSecondsOf(record []uint32) uint32 { return word(record, 3) }

// ChannelMapOf returns the map of channels that triggered together.
func (KatrinFLTEnergy) ChannelMapOf(record []uint32) uint32 { return word(record, 4) & 0x3FFFFF }

// EventIDOf returns the card-local event number.
func (KatrinFLTEnergy) EventIDOf(record []uint32) uint32 { return word(record, 5) & 0x3FF }

// PageNumberOf returns the hardware page the event was stored in.
func (KatrinFLTEnergy) PageNumberOf(record []uint32) uint32 {
	return (word(record, 5) & 0x1FF0000) >> 16
}

// EnergyOf returns the filtered energy.
func (KatrinFLTEnergy) EnergyOf(record []uint32) uint32 { return word(record, 6) }

// ResetSecondsOf returns the time of the last card reset in seconds.
func (KatrinFLTEnergy) ResetSecondsOf(record []uint32) uint32 { return word(record, 7) }

// ResetSubSecondsOf returns the sub-second part of the last reset.
func (KatrinFLTEnergy) ResetSubSecondsOf(record []uint32) uint32 { return word(record, 8) }

// ParameterCount implements Decoder.
func (KatrinFLTEnergy) ParameterCount() int { return len(katrinFLTParameters) }

// ParameterName implements Decoder.
func (KatrinFLTEnergy) ParameterName(parameter int) string {
	if parameter < 0 || parameter >= len(katrinFLTParameters) {
		return ""
	}
	return katrinFLTParameters[parameter]
}

// RowCount implements Decoder; every energy record is one row.
func (KatrinFLTEnergy) RowCount([]uint32) int { return 1 }

// Parameter implements Decoder.
func (d KatrinFLTEnergy) Parameter(record []uint32, parameter, row int) uint32 {
	if row != 0 {
		return 0
	}
	switch parameter {
	case 0:
		return d.ChannelOf(record)
	case 1:
		return d.SecondsOf(record)
	case 2:
		return d.SubSecondsOf(record)
	case 3:
		return d.EventIDOf(record)
	case 4:
		return d.PageNumberOf(record)
	case 5:
		return d.EnergyOf(record)
	default:
		return 0
	}
}

// word returns record[index], or 0 when the record is too short.
func word(record []uint32, index int) uint32 {
	if index >= len(record) {
		return 0
	}
	return record[index]
}

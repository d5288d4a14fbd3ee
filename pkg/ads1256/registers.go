package ads1256

// Register addresses. See the ADS1256 datasheet, table 23.
const (
	regStatus = 0x00
	regMux    = 0x01
	regAdcon  = 0x02
	regDrate  = 0x03
	regIO     = 0x04
)

// Command opcodes.
const (
	cmdWakeup  = 0x00
	cmdRData   = 0x01
	cmdSDataC  = 0x0F
	cmdRReg    = 0x10 // 0x10 + (reg & 0x0F)
	cmdWReg    = 0x50 // 0x50 + (reg & 0x0F)
	cmdSelfCal = 0xF0
	cmdSync    = 0xFC
	cmdReset   = 0xFE
)

// STATUS register bits.
const (
	statusACAL  = 0x04
	statusBufEn = 0x02
	statusDRDY  = 0x01
)

// ADCON register bits. Clock output disabled and sensor detect current
// sources off; the low three bits select the PGA gain.
const (
	adconClkOff  = 0x00
	adconSDCSOff = 0x00
)

// DRATE register codes for a 7.68 MHz master clock. 50 SPS places filter
// zeros at both 50 Hz and 60 Hz for line noise rejection.
const (
	drate2p5SPS = 0x00
	drate10SPS  = 0x02
	drate50SPS  = 0x06
	drate100SPS = 0x08
)

// gainCode returns the ADCON PGA code for a configured gain setting.
// The gain is validated at configuration load; unknown values fall back
// to unity.
func gainCode(gain int) byte {
	switch gain {
	case 2:
		return 0x01
	case 4:
		return 0x02
	case 8:
		return 0x03
	case 16:
		return 0x04
	case 32:
		return 0x05
	case 64:
		return 0x06
	default:
		return 0x00
	}
}

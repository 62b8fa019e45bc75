package band

// US915 is the US 902-928MHz ISM band profile: 64 125kHz upstream
// channels followed by 8 500kHz upstream channels, matching the fixed
// LoRaWAN 1.0.3 US regional channel plan. It has no CFList support in the
// frequency-list sense; a compliant server uses the channel-mask
// encoding, which this library surfaces as unsupported.
var US915 = Profile{
	Name: "US902-928",
	Spans: []ChannelSpan{
		{
			StartHz: 902300000,
			StepHz:  200000,
			Count:   64,
			DataRate: []DataRate{
				NewLoRaDataRate(BW125, 10),
				NewLoRaDataRate(BW125, 9),
				NewLoRaDataRate(BW125, 8),
				NewLoRaDataRate(BW125, 7),
			},
			JoinDR: NewLoRaDataRate(BW125, 10),
		},
		{
			StartHz: 903000000,
			StepHz:  1600000,
			Count:   8,
			DataRate: []DataRate{
				NewLoRaDataRate(BW500, 8),
			},
			JoinDR: NewLoRaDataRate(BW500, 8),
		},
	},
	Backup: Backup{
		FrequencyHz: 923300000,
		DataRate:    NewLoRaDataRate(BW500, 12),
	},
	CFListMode:        CFListChannelMask,
	MaxOutputPowerDBm: 30,
	SyncWord:          []byte{0x34},
	PreambleLength:    8,
	PayloadLenMax: map[DataRate]int{
		NewLoRaDataRate(BW125, 10): 19,
		NewLoRaDataRate(BW125, 9):  61,
		NewLoRaDataRate(BW125, 8):  133,
		NewLoRaDataRate(BW125, 7):  250,
		NewLoRaDataRate(BW500, 8):  250,
		NewLoRaDataRate(BW500, 12): 41,
	},
	JoinAcceptDelay1: 5000,
	JoinAcceptDelay2: 6000,
	ReceiveDelay1:    1000,
	ReceiveDelay2:    2000,
}

package band

// EU868 is the EU 863-870MHz ISM band profile, mirroring the fixed
// three-channel join plan and RX2 defaults of the LoRaWAN 1.0.3 regional
// parameters.
var EU868 = Profile{
	Name: "EU863-870",
	Spans: []ChannelSpan{
		{
			StartHz: 868100000,
			StepHz:  200000,
			Count:   3,
			DataRate: []DataRate{
				NewLoRaDataRate(BW125, 12),
				NewLoRaDataRate(BW125, 11),
				NewLoRaDataRate(BW125, 10),
				NewLoRaDataRate(BW125, 9),
				NewLoRaDataRate(BW125, 8),
				NewLoRaDataRate(BW125, 7),
				NewLoRaDataRate(BW250, 7),
			},
			JoinDR: NewLoRaDataRate(BW125, 12),
		},
	},
	Backup: Backup{
		FrequencyHz: 869525000,
		DataRate:    NewLoRaDataRate(BW125, 12),
	},
	CFListMode:        CFListFrequencyList,
	MaxOutputPowerDBm: 14,
	SyncWord:          []byte{0x34},
	PreambleLength:    8,
	PayloadLenMax: map[DataRate]int{
		NewLoRaDataRate(BW125, 12): 51,
		NewLoRaDataRate(BW125, 11): 51,
		NewLoRaDataRate(BW125, 10): 51,
		NewLoRaDataRate(BW125, 9):  115,
		NewLoRaDataRate(BW125, 8):  222,
		NewLoRaDataRate(BW125, 7):  222,
		NewLoRaDataRate(BW250, 7):  222,
	},
	JoinAcceptDelay1: 5000,
	JoinAcceptDelay2: 6000,
	ReceiveDelay1:    1000,
	ReceiveDelay2:    2000,
}

package tiff

import "fmt"

// Photometric is the PhotometricInterpretation tag value.
type Photometric uint16

// Photometric interpretations.
const (
	PhotometricWhiteIsZero      Photometric = 0
	PhotometricBlackIsZero      Photometric = 1
	PhotometricRGB              Photometric = 2
	PhotometricPalette          Photometric = 3
	PhotometricTransparencyMask Photometric = 4
	PhotometricSeparated        Photometric = 5 // CMYK
	PhotometricYCbCr            Photometric = 6
	PhotometricCIELab           Photometric = 8
	PhotometricICCLab           Photometric = 9
	PhotometricITULab           Photometric = 10
)

var photometricNames = map[Photometric]string{
	PhotometricWhiteIsZero:      "WhiteIsZero",
	PhotometricBlackIsZero:      "BlackIsZero",
	PhotometricRGB:              "RGB",
	PhotometricPalette:          "Palette",
	PhotometricTransparencyMask: "TransparencyMask",
	PhotometricSeparated:        "CMYK",
	PhotometricYCbCr:            "YCbCr",
	PhotometricCIELab:           "CIELab",
	PhotometricICCLab:           "ICCLab",
	PhotometricITULab:           "ITULab",
}

func (p Photometric) String() string {
	if s, ok := photometricNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Photometric(%d)", uint16(p))
}

// Compression is the Compression tag value.
type Compression uint16

// Compression schemes.
const (
	CompressionNone         Compression = 1
	CompressionCCITTRLE     Compression = 2
	CompressionCCITTFax3    Compression = 3
	CompressionCCITTFax4    Compression = 4
	CompressionLZW          Compression = 5
	CompressionOldJPEG      Compression = 6
	CompressionJPEG         Compression = 7
	CompressionAdobeDeflate Compression = 8
	CompressionPackBits     Compression = 32773
	CompressionDeflate      Compression = 32946
	CompressionJPEG2000     Compression = 34712
	CompressionAperioJ2KYCC Compression = 33003
	CompressionAperioJ2KRGB Compression = 33005
	CompressionZSTD         Compression = 50000
)

var compressionNames = map[Compression]string{
	CompressionNone:         "None",
	CompressionCCITTRLE:     "CCITT RLE",
	CompressionCCITTFax3:    "CCITT Group 3",
	CompressionCCITTFax4:    "CCITT Group 4",
	CompressionLZW:          "LZW",
	CompressionOldJPEG:      "Old-style JPEG",
	CompressionJPEG:         "JPEG",
	CompressionAdobeDeflate: "Adobe Deflate",
	CompressionPackBits:     "PackBits",
	CompressionDeflate:      "Deflate",
	CompressionJPEG2000:     "JPEG 2000",
	CompressionAperioJ2KYCC: "JPEG 2000 (YCbCr)",
	CompressionAperioJ2KRGB: "JPEG 2000 (RGB)",
	CompressionZSTD:         "Zstandard",
}

func (c Compression) String() string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Compression(%d)", uint16(c))
}

// IsJPEG reports whether c is one of the JPEG-in-TIFF schemes, whose
// decoders emit RGB rather than YCbCr.
func (c Compression) IsJPEG() bool {
	return c == CompressionJPEG || c == CompressionOldJPEG
}

// SampleFormat is the SampleFormat tag value of one band.
type SampleFormat uint16

// Sample formats.
const (
	SampleFormatUint  SampleFormat = 1
	SampleFormatInt   SampleFormat = 2
	SampleFormatFloat SampleFormat = 3
	SampleFormatVoid  SampleFormat = 4
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatUint:
		return "uint"
	case SampleFormatInt:
		return "int"
	case SampleFormatFloat:
		return "float"
	case SampleFormatVoid:
		return "void"
	}
	return fmt.Sprintf("SampleFormat(%d)", uint16(f))
}

// ExtraSample is the ExtraSamples tag value describing one extra band.
type ExtraSample uint16

// Extra sample roles.
const (
	ExtraSampleUnspecified       ExtraSample = 0
	ExtraSampleAssociatedAlpha   ExtraSample = 1
	ExtraSampleUnassociatedAlpha ExtraSample = 2
)

func (e ExtraSample) String() string {
	switch e {
	case ExtraSampleUnspecified:
		return "unspecified"
	case ExtraSampleAssociatedAlpha:
		return "associated-alpha"
	case ExtraSampleUnassociatedAlpha:
		return "unassociated-alpha"
	}
	return fmt.Sprintf("ExtraSample(%d)", uint16(e))
}

// FillOrder values.
const (
	FillOrderMSB2LSB = 1
	FillOrderLSB2MSB = 2
)

// PlanarConfiguration values.
const (
	PlanarChunky = 1
	PlanarPlanar = 2
)

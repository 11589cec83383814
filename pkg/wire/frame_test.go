package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrameRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		body []byte
	}{
		{"request with body", Header{Dir: DirRequest, CorrID: 7, Op: OpSay}, []byte("hello")},
		{"response empty body", Header{Dir: DirResponse, CorrID: 7, Op: OpLogin}, nil},
		{"event zero corr id", Header{Dir: DirEvent, CorrID: 0, Op: OpEventOnline}, []byte("alice")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := EncodeFrame(tc.h, tc.body)
			gotH, gotBody, err := DecodeFrame(buf)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if gotH != tc.h {
				t.Errorf("header = %+v, want %+v", gotH, tc.h)
			}
			if !bytes.Equal(gotBody, tc.body) {
				t.Errorf("body = %v, want %v", gotBody, tc.body)
			}
		})
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	if _, _, err := DecodeFrame([]byte{0, 0, 0}); err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeFrameUnknownDirection(t *testing.T) {
	h := Header{Dir: 9, CorrID: 1, Op: OpLogin}
	buf := EncodeFrame(h, nil)
	if _, _, err := DecodeFrame(buf); err != ErrUnknownDirection {
		t.Fatalf("err = %v, want ErrUnknownDirection", err)
	}
}

func TestDecodeFrameTooLarge(t *testing.T) {
	buf := make([]byte, MaxPayloadSize+1)
	if _, _, err := DecodeFrame(buf); err != ErrLengthTooLarge {
		t.Fatalf("err = %v, want ErrLengthTooLarge", err)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	h := Header{Dir: DirRequest, CorrID: 42, Op: OpGetChats}
	a := EncodeFrame(h, []byte("x"))
	b := EncodeFrame(h, []byte("x"))
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding not deterministic: %v != %v", a, b)
	}
}

func TestHelloRoundtrip(t *testing.T) {
	var pub [PubKeySize]byte
	for i := range pub {
		pub[i] = byte(i)
	}
	buf := EncodeHello(pub)
	if !IsCleartext(buf) {
		t.Fatal("expected cleartext marker")
	}
	kind, gotPub, err := DecodeCleartext(buf)
	if err != nil {
		t.Fatalf("DecodeCleartext: %v", err)
	}
	if kind != KindHello {
		t.Fatalf("kind = %v, want KindHello", kind)
	}
	if gotPub != pub {
		t.Fatalf("pub = %v, want %v", gotPub, pub)
	}
}

func TestHelloAckRoundtrip(t *testing.T) {
	var pub [PubKeySize]byte
	pub[0] = 0xff
	buf := EncodeHelloAck(pub)
	kind, gotPub, err := DecodeCleartext(buf)
	if err != nil {
		t.Fatalf("DecodeCleartext: %v", err)
	}
	if kind != KindHelloAck {
		t.Fatalf("kind = %v, want KindHelloAck", kind)
	}
	if gotPub != pub {
		t.Fatalf("pub mismatch")
	}
}

func TestDecodeCleartextRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeCleartext([]byte{0x00, 0x99}); err != ErrUnknownCleartextTag {
		t.Fatalf("err = %v, want ErrUnknownCleartextTag", err)
	}
	if _, _, err := DecodeCleartext([]byte{0x01}); err != ErrUnknownCleartextTag {
		t.Fatalf("err = %v, want ErrUnknownCleartextTag for non-marker lead byte", err)
	}
}

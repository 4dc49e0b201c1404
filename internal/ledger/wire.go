package ledger

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

// Wire layout, as flatbuffers tables (slot numbers in brackets):
//
//	WireTransaction   { inputs:[StateRef] [0], attachments:[ubyte] [1], outputs:[Payload] [2], commands:[Command] [3] }
//	StateRef          { hash:[ubyte] [0], index:uint32 [1] }
//	Payload           { kind:string [0], data:[ubyte] [1] }
//	Command           { kind:string [0], data:[ubyte] [1], signers:[Key] [2] }
//	Key               { scheme:ubyte [0], key:[ubyte] [1] }
//	SignedTransaction { tx_bits:[ubyte] [0], sigs:[Signature] [1] }
//	Signature         { scheme:ubyte [0], key:[ubyte] [1], sig:[ubyte] [2] }
//
// Attachments are stored as the concatenation of their 32-byte hashes.

const (
	wtxInputs = iota
	wtxAttachments
	wtxOutputs
	wtxCommands
	wtxFields
)

const (
	refHash = iota
	refIndex
	refFields
)

const (
	payloadKind = iota
	payloadData
	payloadSigners // commands only
	payloadFields
)

const (
	keyScheme = iota
	keyBytes
	keyFields
)

const (
	stxBits = iota
	stxSigs
	stxFields
)

const (
	sigScheme = iota
	sigKey
	sigBytes
	sigFields
)

// EncodeWireTransaction serializes wtx. States and commands are marshalled through codecs.
func EncodeWireTransaction(wtx *WireTransaction, codecs *contracts.Codecs) ([]byte, error) {
	builder := flatbuffers.NewBuilder(1024)

	refs := make([]flatbuffers.UOffsetT, len(wtx.Inputs))
	for i, ref := range wtx.Inputs {
		refs[i] = buildStateRef(builder, ref)
	}

	outputs := make([]flatbuffers.UOffsetT, len(wtx.Outputs))
	for i, state := range wtx.Outputs {
		data, err := codecs.EncodeState(state)
		if err != nil {
			return nil, fmt.Errorf("encode output %d:\n%w", i, err)
		}

		outputs[i] = buildPayload(builder, string(state.Contract()), data, nil)
	}

	commands := make([]flatbuffers.UOffsetT, len(wtx.Commands))
	for i, cmd := range wtx.Commands {
		data, err := codecs.EncodeCommand(cmd.Value)
		if err != nil {
			return nil, fmt.Errorf("encode command %d:\n%w", i, err)
		}

		commands[i] = buildPayload(builder, string(cmd.Value.CommandType()), data, cmd.Signers)
	}

	attachments := make([]byte, 0, len(wtx.Attachments)*crypto.HashSize)
	for _, a := range wtx.Attachments {
		attachments = append(attachments, a[:]...)
	}

	inputsVec := buildOffsetVector(builder, refs)
	attachVec := builder.CreateByteVector(attachments)
	outputsVec := buildOffsetVector(builder, outputs)
	commandsVec := buildOffsetVector(builder, commands)

	builder.StartObject(wtxFields)
	builder.PrependUOffsetTSlot(wtxInputs, inputsVec, 0)
	builder.PrependUOffsetTSlot(wtxAttachments, attachVec, 0)
	builder.PrependUOffsetTSlot(wtxOutputs, outputsVec, 0)
	builder.PrependUOffsetTSlot(wtxCommands, commandsVec, 0)
	builder.Finish(builder.EndObject())

	return builder.FinishedBytes(), nil
}

// DecodeWireTransaction parses bytes produced by EncodeWireTransaction.
func DecodeWireTransaction(data []byte, codecs *contracts.Codecs) (wtx *WireTransaction, err error) {
	defer recoverMalformed("wire transaction", &err)

	root := rootTable(data)
	wtx = &WireTransaction{}

	for i := 0; i < root.length(wtxInputs); i++ {
		ref := root.child(wtxInputs, i)

		hash, ok := crypto.HashFromBytes(ref.bytes(refHash))
		if !ok {
			return nil, fmt.Errorf("input %d: invalid hash", i)
		}

		wtx.Inputs = append(wtx.Inputs, contracts.StateRef{Hash: hash, Index: int(ref.uint32(refIndex))})
	}

	attachments := root.bytes(wtxAttachments)
	if len(attachments)%crypto.HashSize != 0 {
		return nil, fmt.Errorf("attachments: length %d is not a multiple of %d", len(attachments), crypto.HashSize)
	}
	for off := 0; off < len(attachments); off += crypto.HashSize {
		var h crypto.SecureHash
		copy(h[:], attachments[off:])
		wtx.Attachments = append(wtx.Attachments, h)
	}

	for i := 0; i < root.length(wtxOutputs); i++ {
		p := root.child(wtxOutputs, i)

		state, err := codecs.DecodeState(contracts.ContractID(p.bytes(payloadKind)), p.bytes(payloadData))
		if err != nil {
			return nil, fmt.Errorf("output %d:\n%w", i, err)
		}

		wtx.Outputs = append(wtx.Outputs, state)
	}

	for i := 0; i < root.length(wtxCommands); i++ {
		p := root.child(wtxCommands, i)

		value, err := codecs.DecodeCommand(contracts.CommandType(p.bytes(payloadKind)), p.bytes(payloadData))
		if err != nil {
			return nil, fmt.Errorf("command %d:\n%w", i, err)
		}

		signers := make([]crypto.PublicKey, p.length(payloadSigners))
		for j := range signers {
			k := p.child(payloadSigners, j)
			signers[j] = crypto.NewPublicKey(crypto.Scheme(k.byte(keyScheme)), k.bytes(keyBytes))
		}

		wtx.Commands = append(wtx.Commands, contracts.Command{Value: value, Signers: signers})
	}

	return wtx, nil
}

// EncodeSignedTransaction serializes the transaction bits with their signatures.
func EncodeSignedTransaction(stx *SignedTransaction) []byte {
	builder := flatbuffers.NewBuilder(len(stx.TxBits) + 256)

	sigs := make([]flatbuffers.UOffsetT, len(stx.Sigs))
	for i, sig := range stx.Sigs {
		keyVec := builder.CreateByteVector(sig.By.Bytes())
		sigVec := builder.CreateByteVector(sig.Bytes)

		builder.StartObject(sigFields)
		builder.PrependByteSlot(sigScheme, byte(sig.By.Scheme), 0)
		builder.PrependUOffsetTSlot(sigKey, keyVec, 0)
		builder.PrependUOffsetTSlot(sigBytes, sigVec, 0)
		sigs[i] = builder.EndObject()
	}

	bitsVec := builder.CreateByteVector(stx.TxBits)
	sigsVec := buildOffsetVector(builder, sigs)

	builder.StartObject(stxFields)
	builder.PrependUOffsetTSlot(stxBits, bitsVec, 0)
	builder.PrependUOffsetTSlot(stxSigs, sigsVec, 0)
	builder.Finish(builder.EndObject())

	return builder.FinishedBytes()
}

// DecodeSignedTransaction parses bytes produced by EncodeSignedTransaction and decodes
// the wire transaction they carry.
func DecodeSignedTransaction(data []byte, codecs *contracts.Codecs) (stx *SignedTransaction, err error) {
	var (
		bits []byte
		sigs []crypto.Signature
	)

	func() {
		defer recoverMalformed("signed transaction", &err)

		root := rootTable(data)
		bits = append([]byte(nil), root.bytes(stxBits)...)

		sigs = make([]crypto.Signature, root.length(stxSigs))
		for i := range sigs {
			s := root.child(stxSigs, i)
			sigs[i] = crypto.Signature{
				By:    crypto.NewPublicKey(crypto.Scheme(s.byte(sigScheme)), s.bytes(sigKey)),
				Bytes: append([]byte(nil), s.bytes(sigBytes)...),
			}
		}
	}()
	if err != nil {
		return nil, err
	}

	return NewSignedTransaction(bits, sigs, codecs)
}

func buildStateRef(builder *flatbuffers.Builder, ref contracts.StateRef) flatbuffers.UOffsetT {
	hashVec := builder.CreateByteVector(ref.Hash[:])

	builder.StartObject(refFields)
	builder.PrependUOffsetTSlot(refHash, hashVec, 0)
	builder.PrependUint32Slot(refIndex, uint32(ref.Index), 0)

	return builder.EndObject()
}

func buildPayload(builder *flatbuffers.Builder, kind string, data []byte, signers []crypto.PublicKey) flatbuffers.UOffsetT {
	var signersVec flatbuffers.UOffsetT
	if signers != nil {
		keys := make([]flatbuffers.UOffsetT, len(signers))
		for i, k := range signers {
			keyVec := builder.CreateByteVector(k.Bytes())

			builder.StartObject(keyFields)
			builder.PrependByteSlot(keyScheme, byte(k.Scheme), 0)
			builder.PrependUOffsetTSlot(keyBytes, keyVec, 0)
			keys[i] = builder.EndObject()
		}
		signersVec = buildOffsetVector(builder, keys)
	}

	kindOff := builder.CreateString(kind)
	dataVec := builder.CreateByteVector(data)

	builder.StartObject(payloadFields)
	builder.PrependUOffsetTSlot(payloadKind, kindOff, 0)
	builder.PrependUOffsetTSlot(payloadData, dataVec, 0)
	if signers != nil {
		builder.PrependUOffsetTSlot(payloadSigners, signersVec, 0)
	}

	return builder.EndObject()
}

// buildOffsetVector writes a vector of table offsets, preserving order.
func buildOffsetVector(builder *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	builder.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

// table reads fields by slot number.
type table struct {
	flatbuffers.Table
}

func rootTable(buf []byte) table {
	n := flatbuffers.GetUOffsetT(buf)
	return table{flatbuffers.Table{Bytes: buf, Pos: n}}
}

func (t table) field(slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}

func (t table) bytes(slot int) []byte {
	o := t.field(slot)
	if o == 0 {
		return nil
	}
	return t.ByteVector(o + t.Pos)
}

func (t table) uint32(slot int) uint32 {
	o := t.field(slot)
	if o == 0 {
		return 0
	}
	return t.GetUint32(o + t.Pos)
}

func (t table) byte(slot int) byte {
	o := t.field(slot)
	if o == 0 {
		return 0
	}
	return t.GetByte(o + t.Pos)
}

func (t table) length(slot int) int {
	o := t.field(slot)
	if o == 0 {
		return 0
	}
	return t.VectorLen(o)
}

func (t table) child(slot, j int) table {
	x := t.Vector(t.field(slot))
	x += flatbuffers.UOffsetT(j) * flatbuffers.SizeUOffsetT
	x = t.Indirect(x)

	return table{flatbuffers.Table{Bytes: t.Bytes, Pos: x}}
}

// recoverMalformed turns an out-of-range read on truncated input into an error.
func recoverMalformed(what string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed %s: %v", what, r)
	}
}

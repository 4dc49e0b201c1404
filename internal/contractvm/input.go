package contractvm

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

// Guest input layout, as flatbuffers tables (slot numbers in brackets):
//
//	Input   { tx_hash:[ubyte] [0], inputs:[Payload] [1], outputs:[Payload] [2], commands:[Payload] [3], attachments:[ubyte] [4] }
//	Payload { kind:string [0], data:[ubyte] [1], signers:[Key] [2] }
//	Key     { scheme:ubyte [0], key:[ubyte] [1] }
//
// States carry their contract id as kind, commands their command type.

const (
	inTxHash = iota
	inInputs
	inOutputs
	inCommands
	inAttachments
	inFields
)

const (
	payloadKind = iota
	payloadData
	payloadSigners
	payloadFields
)

const (
	keyScheme = iota
	keyBytes
	keyFields
)

// encodeInput serializes the transaction for a guest contract.
func encodeInput(tx *contracts.TransactionForVerification, codecs *contracts.Codecs) ([]byte, error) {
	builder := flatbuffers.NewBuilder(1024)

	inputs, err := buildStates(builder, tx.InStates, codecs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs:\n%w", err)
	}

	outputs, err := buildStates(builder, tx.OutStates, codecs)
	if err != nil {
		return nil, fmt.Errorf("encode outputs:\n%w", err)
	}

	commands := make([]flatbuffers.UOffsetT, len(tx.Commands))
	for i, cmd := range tx.Commands {
		data, err := codecs.EncodeCommand(cmd.Value)
		if err != nil {
			return nil, fmt.Errorf("encode command %d:\n%w", i, err)
		}

		commands[i] = buildPayload(builder, string(cmd.Value.CommandType()), data, cmd.Signers())
	}

	attachments := make([]byte, 0, len(tx.Attachments)*crypto.HashSize)
	for _, a := range tx.Attachments {
		attachments = append(attachments, a[:]...)
	}

	hashVec := builder.CreateByteVector(tx.OrigHash[:])
	inputsVec := buildOffsetVector(builder, inputs)
	outputsVec := buildOffsetVector(builder, outputs)
	commandsVec := buildOffsetVector(builder, commands)
	attachVec := builder.CreateByteVector(attachments)

	builder.StartObject(inFields)
	builder.PrependUOffsetTSlot(inTxHash, hashVec, 0)
	builder.PrependUOffsetTSlot(inInputs, inputsVec, 0)
	builder.PrependUOffsetTSlot(inOutputs, outputsVec, 0)
	builder.PrependUOffsetTSlot(inCommands, commandsVec, 0)
	builder.PrependUOffsetTSlot(inAttachments, attachVec, 0)
	builder.Finish(builder.EndObject())

	return builder.FinishedBytes(), nil
}

func buildStates(builder *flatbuffers.Builder, states []contracts.ContractState, codecs *contracts.Codecs) ([]flatbuffers.UOffsetT, error) {
	offsets := make([]flatbuffers.UOffsetT, len(states))

	for i, s := range states {
		data, err := codecs.EncodeState(s)
		if err != nil {
			return nil, fmt.Errorf("state %d:\n%w", i, err)
		}

		offsets[i] = buildPayload(builder, string(s.Contract()), data, nil)
	}

	return offsets, nil
}

func buildPayload(builder *flatbuffers.Builder, kind string, data []byte, signers []crypto.PublicKey) flatbuffers.UOffsetT {
	keys := make([]flatbuffers.UOffsetT, len(signers))
	for i, k := range signers {
		keyVec := builder.CreateByteVector(k.Bytes())

		builder.StartObject(keyFields)
		builder.PrependByteSlot(keyScheme, byte(k.Scheme), 0)
		builder.PrependUOffsetTSlot(keyBytes, keyVec, 0)
		keys[i] = builder.EndObject()
	}
	signersVec := buildOffsetVector(builder, keys)

	kindOff := builder.CreateString(kind)
	dataVec := builder.CreateByteVector(data)

	builder.StartObject(payloadFields)
	builder.PrependUOffsetTSlot(payloadKind, kindOff, 0)
	builder.PrependUOffsetTSlot(payloadData, dataVec, 0)
	builder.PrependUOffsetTSlot(payloadSigners, signersVec, 0)

	return builder.EndObject()
}

func buildOffsetVector(builder *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	builder.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

package types

import (
	"bytes"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
)

const MessageVersion = 0

// MethodSend is the method that only moves value.
const MethodSend = abi.MethodNum(0)

// MethodConstructor is invoked on an actor right after it is created.
const MethodConstructor = abi.MethodNum(1)

// Message is a request to invoke a method on an actor, optionally carrying value.
type Message struct {
	Version uint64

	To   address.Address
	From address.Address

	Nonce uint64

	Value abi.TokenAmount

	GasLimit   int64
	GasFeeCap  abi.TokenAmount
	GasPremium abi.TokenAmount

	Method abi.MethodNum
	Params []byte
}

// Serialize returns the CBOR encoding of the message.
func (msg *Message) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := msg.MarshalCBOR(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChainLength is the size of the message as it is included on chain.
func (msg *Message) ChainLength() int {
	ser, err := msg.Serialize()
	if err != nil {
		panic(err)
	}
	return len(ser)
}

// Cid returns the content identifier of the serialized message.
func (msg *Message) Cid() cid.Cid {
	ser, err := msg.Serialize()
	if err != nil {
		panic(err)
	}
	c, err := constants.DefaultCidBuilder.Sum(ser)
	if err != nil {
		panic(err)
	}
	return c
}

// RequiredFunds is the amount the sender has to hold to cover the gas limit and the value.
func (msg *Message) RequiredFunds() abi.TokenAmount {
	gasCost := big.Mul(msg.GasFeeCap, big.NewInt(msg.GasLimit))
	return big.Add(gasCost, msg.Value)
}

// ValidForExecution checks the fields that do not depend on chain state.
func (msg *Message) ValidForExecution() error {
	if msg.Version != MessageVersion {
		return fmt.Errorf("'Version' unsupported")
	}
	if msg.To == address.Undef {
		return fmt.Errorf("'To' address cannot be empty")
	}
	if msg.From == address.Undef {
		return fmt.Errorf("'From' address cannot be empty")
	}
	if msg.Value.Int == nil || msg.Value.LessThan(big.Zero()) {
		return fmt.Errorf("'Value' field cannot be nil or negative")
	}
	if msg.GasFeeCap.Int == nil || msg.GasFeeCap.LessThan(big.Zero()) {
		return fmt.Errorf("'GasFeeCap' field cannot be nil or negative")
	}
	if msg.GasPremium.Int == nil || msg.GasPremium.LessThan(big.Zero()) {
		return fmt.Errorf("'GasPremium' field cannot be nil or negative")
	}
	if msg.GasPremium.GreaterThan(msg.GasFeeCap) {
		return fmt.Errorf("'GasFeeCap' less than 'GasPremium'")
	}
	if msg.GasLimit <= 0 {
		return fmt.Errorf("'GasLimit' field cannot be less or equal to zero")
	}
	return nil
}

func (msg *Message) String() string {
	return fmt.Sprintf("Message{from=%s to=%s nonce=%d method=%d value=%s gas=%d}",
		msg.From, msg.To, msg.Nonce, msg.Method, msg.Value, msg.GasLimit)
}

// MessageReceipt is what the chain records for an applied message.
type MessageReceipt struct {
	ExitCode exitcode.ExitCode
	Return   []byte
	GasUsed  int64
}

// Failure returns a receipt for a message that failed with code after using gasAmount.
func Failure(code exitcode.ExitCode, gasAmount int64) MessageReceipt {
	return MessageReceipt{
		ExitCode: code,
		Return:   []byte{},
		GasUsed:  gasAmount,
	}
}

func (r *MessageReceipt) String() string {
	return fmt.Sprintf("{ExitCode: %s, Return: %x, GasUsed: %d}", r.ExitCode, r.Return, r.GasUsed)
}

// Package contracts holds the ABI definitions of the InnChain escrow contract and the
// ERC-20 settlement token it pulls payments from.
package contracts

// ContractDecimals is the fixed-point scale the InnChain contract uses for hotel and
// room-class prices and for the deposit passed to createBooking. It does not follow the
// settlement token's own decimals() value.
const ContractDecimals uint8 = 18

// Event names emitted by the escrow contract.
const (
	EventBookingCreated   = "BookingCreated"
	EventCheckInConfirmed = "CheckInConfirmed"
)

// InnChainABI is the subset of the escrow contract interface used by the client.
const InnChainABI = `[
  {"type":"function","name":"createBooking","stateMutability":"nonpayable",
   "inputs":[{"name":"hotelId","type":"uint256"},{"name":"roomClassId","type":"uint256"},{"name":"nights","type":"uint256"},{"name":"deposit","type":"uint256"}],
   "outputs":[{"name":"bookingId","type":"uint256"}]},
  {"type":"function","name":"confirmCheckIn","stateMutability":"nonpayable",
   "inputs":[{"name":"bookingId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"refundDeposit","stateMutability":"nonpayable",
   "inputs":[{"name":"bookingId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"chargeDeposit","stateMutability":"nonpayable",
   "inputs":[{"name":"bookingId","type":"uint256"},{"name":"chargeAmount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"fullRefund","stateMutability":"nonpayable",
   "inputs":[{"name":"bookingId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getBooking","stateMutability":"view",
   "inputs":[{"name":"bookingId","type":"uint256"}],
   "outputs":[{"name":"booking","type":"tuple","components":[
     {"name":"id","type":"uint256"},
     {"name":"hotelId","type":"uint256"},
     {"name":"roomClassId","type":"uint256"},
     {"name":"customer","type":"address"},
     {"name":"nights","type":"uint256"},
     {"name":"roomCost","type":"uint256"},
     {"name":"deposit","type":"uint256"},
     {"name":"checkedIn","type":"bool"},
     {"name":"settled","type":"bool"},
     {"name":"createdAt","type":"uint256"}]}]},
  {"type":"function","name":"getAllHotels","stateMutability":"view","inputs":[],
   "outputs":[
     {"name":"hotelIds","type":"uint256[]"},
     {"name":"hotelNames","type":"string[]"},
     {"name":"hotelWallets","type":"address[]"},
     {"name":"hotelClassIds","type":"uint256[][]"},
     {"name":"hotelClassNames","type":"string[][]"},
     {"name":"hotelClassPrices","type":"uint256[][]"}]},
  {"type":"function","name":"getHotel","stateMutability":"view",
   "inputs":[{"name":"hotelId","type":"uint256"}],
   "outputs":[{"name":"registered","type":"bool"},{"name":"name","type":"string"},{"name":"wallet","type":"address"},{"name":"classCount","type":"uint256"}]},
  {"type":"function","name":"getHotelClasses","stateMutability":"view",
   "inputs":[{"name":"hotelId","type":"uint256"}],
   "outputs":[{"name":"classIds","type":"uint256[]"}]},
  {"type":"function","name":"getAllRoomClasses","stateMutability":"view","inputs":[],
   "outputs":[{"name":"ids","type":"uint256[]"},{"name":"names","type":"string[]"},{"name":"prices","type":"uint256[]"}]},
  {"type":"event","name":"BookingCreated","anonymous":false,
   "inputs":[{"name":"bookingId","type":"uint256","indexed":true},{"name":"hotelId","type":"uint256","indexed":true},{"name":"customer","type":"address","indexed":true}]},
  {"type":"event","name":"CheckInConfirmed","anonymous":false,
   "inputs":[{"name":"bookingId","type":"uint256","indexed":true},{"name":"roomCostReleased","type":"uint256","indexed":false}]}
]`

// ERC20ABI covers the token calls the booking flow needs.
const ERC20ABI = `[
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Approval","anonymous":false,
   "inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`
